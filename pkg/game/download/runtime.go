package download

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/telemetry"
)

// DownloadRuntime installs the Java runtime component (for example
// java-runtime-gamma) for the current platform into
// <RuntimeDir>/<component> and returns the path of its java executable.
// Files already present with the right hash are not fetched again.
func (d *Downloader) DownloadRuntime(ctx context.Context, component string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "download.Runtime")
	defer span.End()

	if component == "" || !filepath.IsLocal(component) {
		return "", launcherr.InvalidInputf("invalid java runtime component %q", component)
	}
	platform, ok := runtimePlatform(d.env)
	if !ok {
		return "", launcherr.InvalidInputf("no java runtime published for %s/%s", d.env.OS, d.env.Arch)
	}
	span.SetAttributes(attribute.String("runtime.component", component), attribute.String("runtime.platform", platform))

	data, err := d.fetcher.Fetch(ctx, d.runtimeIndexURL)
	if err != nil {
		return "", launcherr.Fetch("java runtime index", err)
	}
	var index manifests.RuntimeIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return "", launcherr.Parse("java runtime index", err)
	}
	release, ok := index.Release(platform, component)
	if !ok {
		return "", launcherr.InvalidInputf("java runtime %s is not published for %s", component, platform)
	}

	home := d.layout.RuntimeHome(component)
	manifestPath := filepath.Join(d.layout.RuntimeDir, component+".json")
	if _, err := d.fetchAndVerify(ctx, pipelineRuntime, release.Manifest.URL, manifestPath, release.Manifest.SHA1, d.maxTries); err != nil {
		return "", err
	}
	manifest, err := readRuntimeManifest(manifestPath, component)
	if err != nil {
		return "", err
	}

	jobs, links, err := d.runtimeJobs(home, manifest)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("download.jobs", len(jobs)), attribute.Int("runtime.links", len(links)))

	if err := d.run(ctx, pipelineRuntime, "Downloading runtime", jobs); err != nil {
		return "", err
	}
	for _, l := range links {
		if err := placeLink(l.path, l.target); err != nil {
			return "", err
		}
	}

	java := runtimeJava(home, d.env.OS)
	if _, err := os.Stat(java); err != nil {
		return "", launcherr.IO(java, err)
	}
	d.log.Info("java runtime ready", "component", component, "version", release.Version.Name, "java", java)
	return java, nil
}

type runtimeLink struct {
	path   string
	target string
}

func readRuntimeManifest(path, component string) (*manifests.RuntimeManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, launcherr.IO(path, err)
	}
	var m manifests.RuntimeManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, launcherr.Parse("java runtime manifest "+component, err)
	}
	if len(m.Files) == 0 {
		return nil, launcherr.Parsef("java runtime manifest %s lists no files", component)
	}
	return &m, nil
}

func (d *Downloader) runtimeJobs(home string, m *manifests.RuntimeManifest) ([]job, []runtimeLink, error) {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		jobs  []job
		links []runtimeLink
	)
	for _, name := range names {
		rel := filepath.FromSlash(name)
		if !filepath.IsLocal(rel) {
			return nil, nil, launcherr.Parsef("runtime file %q escapes the runtime directory", name)
		}
		dest := filepath.Join(home, rel)
		f := m.Files[name]

		switch f.Type {
		case manifests.RuntimeDirectoryType:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, nil, launcherr.IO(dest, err)
			}
		case manifests.RuntimeFileType:
			if f.Downloads.Raw == nil || f.Downloads.Raw.URL == "" {
				return nil, nil, launcherr.Parsef("runtime file %q has no raw download", name)
			}
			j := job{
				name: name,
				url:  f.Downloads.Raw.URL,
				dest: dest,
				sha1: f.Downloads.Raw.SHA1,
			}
			if f.Executable {
				j.after = func() error {
					if err := os.Chmod(dest, 0o755); err != nil {
						return launcherr.IO(dest, err)
					}
					return nil
				}
			}
			jobs = append(jobs, j)
		case manifests.RuntimeLinkType:
			if d.env.OS == "windows" {
				continue
			}
			target := filepath.FromSlash(f.Target)
			if f.Target == "" || filepath.IsAbs(target) || !filepath.IsLocal(filepath.Join(filepath.Dir(rel), target)) {
				return nil, nil, launcherr.Parsef("runtime link %q points outside the runtime directory", name)
			}
			links = append(links, runtimeLink{path: dest, target: target})
		default:
			d.log.Debug("unknown runtime entry type", "name", name, "type", f.Type)
		}
	}
	return jobs, links, nil
}

func placeLink(path, target string) error {
	if current, err := os.Readlink(path); err == nil {
		if current == target {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return launcherr.IO(path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return launcherr.IO(path, err)
	}
	if err := os.Symlink(target, path); err != nil {
		return launcherr.IO(path, err)
	}
	return nil
}

// runtimePlatform maps the platform to the key the runtime index uses.
func runtimePlatform(env rules.Env) (string, bool) {
	switch env.OS + "/" + env.Arch {
	case "linux/amd64":
		return "linux", true
	case "linux/386":
		return "linux-i386", true
	case "osx/amd64":
		return "mac-os", true
	case "osx/arm64":
		return "mac-os-arm64", true
	case "windows/amd64":
		return "windows-x64", true
	case "windows/386":
		return "windows-x86", true
	case "windows/arm64":
		return "windows-arm64", true
	}
	return "", false
}

func runtimeJava(home, osName string) string {
	switch osName {
	case "osx":
		return filepath.Join(home, "jre.bundle", "Contents", "Home", "bin", "java")
	case "windows":
		return filepath.Join(home, "bin", "java.exe")
	}
	return filepath.Join(home, "bin", "java")
}

// RuntimeComponent returns the runtime a descriptor asks for, if any.
func RuntimeComponent(v *manifests.VersionDescriptor) string {
	if v == nil || v.JavaVersion == nil {
		return ""
	}
	return strings.TrimSpace(v.JavaVersion.Component)
}
