// Package launcher resolves, installs and runs a game version: it drives
// the resolver and download pipelines, picks a Java runtime, builds the
// command line and supervises the game process.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"limeal.fr/gamepipe/pkg/config"
	"limeal.fr/gamepipe/pkg/game/args"
	"limeal.fr/gamepipe/pkg/game/download"
	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/game/meta"
	"limeal.fr/gamepipe/pkg/game/profile"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/telemetry"
)

const processName = "minecraft"

type Launcher struct {
	resolver   *meta.Resolver
	downloader *download.Downloader
	layout     config.LaunchOptions
	env        rules.Env
	log        *slog.Logger

	javaPath        string
	extraJavaArgs   []string
	memory          profile.Memory
	launcherName    string
	launcherVersion string

	findJava func(ctx context.Context, major int, runtimeDir string) (string, error)
	launch   func(ctx context.Context, c Command) (int, error)
}

type Option func(*Launcher)

func WithLogger(log *slog.Logger) Option {
	return func(l *Launcher) { l.log = log }
}

// WithJavaPath pins the java executable, skipping runtime discovery.
func WithJavaPath(p string) Option {
	return func(l *Launcher) { l.javaPath = p }
}

func WithJavaArgs(extra ...string) Option {
	return func(l *Launcher) { l.extraJavaArgs = append(l.extraJavaArgs, extra...) }
}

func WithMemory(m profile.Memory) Option {
	return func(l *Launcher) { l.memory = m }
}

func WithLauncherInfo(name, version string) Option {
	return func(l *Launcher) {
		l.launcherName = name
		l.launcherVersion = version
	}
}

// WithEnv overrides the platform used to evaluate argument rules.
func WithEnv(env rules.Env) Option {
	return func(l *Launcher) { l.env = env }
}

func New(resolver *meta.Resolver, downloader *download.Downloader, layout config.LaunchOptions, opts ...Option) *Launcher {
	l := &Launcher{
		resolver:        resolver,
		downloader:      downloader,
		layout:          layout,
		env:             rules.Current(),
		log:             slog.Default(),
		memory:          profile.DefaultMemory(),
		launcherName:    "gamepipe",
		launcherVersion: "1.0.0",
		findJava:        FindJava,
		launch:          Launch,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Install resolves versionID and makes every file it needs present and
// verified on disk.
func (l *Launcher) Install(ctx context.Context, versionID string) (*manifests.VersionDescriptor, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "launcher.Install")
	defer span.End()
	span.SetAttributes(attribute.String("version", versionID))

	d, err := l.install(ctx, versionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return d, err
}

func (l *Launcher) install(ctx context.Context, versionID string) (*manifests.VersionDescriptor, error) {
	if err := l.layout.EnsureDirs(); err != nil {
		return nil, err
	}

	m, err := l.resolver.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	d, err := l.resolver.ResolveVersion(ctx, m, versionID)
	if err != nil {
		return nil, err
	}
	idx, err := l.resolver.FetchAssetIndex(ctx, d)
	if err != nil {
		return nil, err
	}

	l.log.Info("installing version", "version", d.ID, "libraries", len(d.Libraries), "assets", len(idx.Objects))
	if err := l.downloader.DownloadVersion(ctx, d, idx); err != nil {
		return nil, err
	}
	return d, nil
}

// Prepare installs versionID and returns the command that starts it for
// creds.
func (l *Launcher) Prepare(ctx context.Context, versionID string, creds profile.Credentials) (Command, error) {
	if err := l.memory.Validate(); err != nil {
		return Command{}, launcherr.InvalidInputf("%v", err)
	}

	d, err := l.Install(ctx, versionID)
	if err != nil {
		return Command{}, err
	}

	java, err := l.resolveJava(ctx, d)
	if err != nil {
		return Command{}, err
	}

	return l.command(d, creds, java)
}

func (l *Launcher) command(d *manifests.VersionDescriptor, creds profile.Credentials, java string) (Command, error) {
	set, err := d.ArgumentSet()
	if err != nil {
		return Command{}, launcherr.Parse("arguments", err)
	}

	cp, err := args.Classpath(l.layout.LibrariesDir, d.Libraries, l.layout.ClientJar(d.ID), l.env)
	if err != nil {
		return Command{}, err
	}

	values := args.Values{
		NativesDir:      l.layout.VersionNativesDir(d.ID),
		Classpath:       cp,
		MainClass:       d.MainClass,
		LibrariesDir:    l.layout.LibrariesDir,
		Credentials:     creds,
		VersionID:       d.ID,
		VersionType:     d.Type,
		AssetIndexID:    d.AssetIndex.ID,
		GameDir:         l.layout.GameDir,
		AssetsDir:       l.layout.AssetsDir,
		LegacyAssetsDir: l.layout.LegacyAssetsDir,
		LauncherName:    l.launcherName,
		LauncherVersion: l.launcherVersion,
	}

	descriptorJVM, err := args.BuildJVMArgs(args.JVMFragments(set), values, l.env)
	if err != nil {
		return Command{}, err
	}
	gameArgs, err := args.BuildGameArgs(set, values, l.env)
	if err != nil {
		return Command{}, err
	}

	jvmArgs := append(l.memory.ToArgs(), l.extraJavaArgs...)
	jvmArgs = append(jvmArgs, descriptorJVM...)

	return Command{
		Executable: java,
		JVMArgs:    jvmArgs,
		MainClass:  d.MainClass,
		GameArgs:   gameArgs,
		Dir:        l.layout.RootDir,
		Name:       processName,
	}, nil
}

// resolveJava prefers an explicit path, then an installed runtime of the
// required major version, then the runtime component the descriptor names
// (downloaded on demand), then whatever java is on PATH.
func (l *Launcher) resolveJava(ctx context.Context, d *manifests.VersionDescriptor) (string, error) {
	if l.javaPath != "" {
		return l.javaPath, nil
	}

	major := RequiredJavaMajor(d)
	p, err := l.findJava(ctx, major, l.layout.RuntimeDir)
	if err == nil {
		l.log.Debug("java runtime selected", "path", p, "major", major)
		return p, nil
	}

	if component := download.RuntimeComponent(d); component != "" {
		p, rerr := l.downloader.DownloadRuntime(ctx, component)
		if rerr == nil {
			return p, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", launcherr.Task("java runtime", ctxErr)
		}
		l.log.Warn("java runtime download failed", "component", component, "error", rerr)
	}

	l.log.Warn("no matching java runtime, falling back to PATH", "major", major, "error", err)
	p, err = exec.LookPath(javaBinary())
	if err != nil {
		return "", &launcherr.ProcessError{Process: "java", Err: fmt.Errorf("java %d not found: %w", major, err)}
	}
	return p, nil
}

// LaunchVersion installs versionID, then runs it for creds until the game
// exits, returning its exit code.
func (l *Launcher) LaunchVersion(ctx context.Context, versionID string, creds profile.Credentials) (int, error) {
	cmd, err := l.Prepare(ctx, versionID, creds)
	if err != nil {
		return -1, err
	}

	l.log.Info("starting game",
		"version", versionID,
		"java", cmd.Executable,
		"dir", cmd.Dir,
		"main_class", cmd.MainClass,
	)
	l.log.Debug("command line", "args", strings.Join(cmd.Args(), " "))

	code, err := l.launch(ctx, cmd)
	if err != nil {
		return code, err
	}
	l.log.Info("game exited", "version", versionID, "code", code)
	return code, nil
}
