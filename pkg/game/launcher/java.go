package launcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"

	"limeal.fr/gamepipe/pkg/game/manifests"
)

// DefaultJavaMajor is used when neither the descriptor nor the version
// table names a runtime.
const DefaultJavaMajor = 21

// javaByGameVersion maps release ranges to the Java major they need, for
// descriptors that predate the javaVersion field.
var javaByGameVersion = []struct {
	constraint *semver.Constraints
	major      int
}{
	{mustConstraint("< 1.17"), 8},
	{mustConstraint(">= 1.17, < 1.18"), 16},
	{mustConstraint(">= 1.18, < 1.20.5"), 17},
	{mustConstraint(">= 1.20.5"), 21},
}

func mustConstraint(raw string) *semver.Constraints {
	c, err := semver.NewConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// RequiredJavaMajor returns the Java major version d runs on. The
// descriptor's javaVersion wins; otherwise the version id is matched
// against the release table. Ids that are not release numbers (old alphas
// and betas) run on Java 8.
func RequiredJavaMajor(d *manifests.VersionDescriptor) int {
	if d.JavaVersion != nil && d.JavaVersion.MajorVersion > 0 {
		return d.JavaVersion.MajorVersion
	}

	v, err := semver.NewVersion(d.ID)
	if err != nil {
		return 8
	}
	for _, entry := range javaByGameVersion {
		if entry.constraint.Check(v) {
			return entry.major
		}
	}
	return DefaultJavaMajor
}

// FindJava returns the first java executable whose major version is
// major. Bundled runtimes under runtimeDir are tried before system
// installs; PATH comes last.
func FindJava(ctx context.Context, major int, runtimeDir string) (string, error) {
	var candidates []string
	if runtimeDir != "" {
		candidates = append(candidates, globAll(
			filepath.Join(runtimeDir, "*", "bin", javaBinary()),
			filepath.Join(runtimeDir, "*", "jre.bundle", "Contents", "Home", "bin", "java"),
		)...)
	}
	if jh := os.Getenv("JAVA_HOME"); jh != "" {
		candidates = append(candidates, filepath.Join(jh, "bin", javaBinary()))
	}

	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		candidates = append(candidates, globAll(
			"/Library/Java/JavaVirtualMachines/*/Contents/Home/bin/java",
			filepath.Join(home, "Library/Java/JavaVirtualMachines/*/Contents/Home/bin/java"),
			"/opt/homebrew/opt/openjdk*/libexec/openjdk.jdk/Contents/Home/bin/java",
			"/usr/local/opt/openjdk*/libexec/openjdk.jdk/Contents/Home/bin/java",
		)...)
	case "linux":
		if out, err := exec.CommandContext(ctx, "update-alternatives", "--list", "java").Output(); err == nil {
			candidates = append(candidates, nonEmptyLines(string(out))...)
		}
		candidates = append(candidates, globAll("/usr/lib/jvm/*/bin/java", "/usr/java/*/bin/java")...)
	case "windows":
		for _, root := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)")} {
			if root == "" {
				continue
			}
			candidates = append(candidates, globAll(
				filepath.Join(root, "Java", "*", "bin", "java.exe"),
				filepath.Join(root, "Eclipse Adoptium", "*", "bin", "java.exe"),
				filepath.Join(root, "Zulu", "*", "bin", "java.exe"),
			)...)
		}
	}

	if p, err := exec.LookPath(javaBinary()); err == nil {
		candidates = append(candidates, p)
	}

	seen := map[string]bool{}
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		raw, err := javaVersion(ctx, abs)
		if err != nil {
			continue
		}
		if got, err := javaMajor(raw); err == nil && got == major {
			return abs, nil
		}
	}

	return "", fmt.Errorf("no java %d runtime found", major)
}

func javaBinary() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

func globAll(patterns ...string) []string {
	var out []string
	for _, g := range patterns {
		if matches, _ := filepath.Glob(g); len(matches) > 0 {
			out = append(out, matches...)
		}
	}
	return out
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var versionRe = regexp.MustCompile(`version "([^"]+)"`) // "17.0.10", "1.8.0_392", "21"

func javaVersion(ctx context.Context, javaPath string) (string, error) {
	cmd := exec.CommandContext(ctx, javaPath, "-version")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr // java -version prints to stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return parseJavaVersionOutput(stderr.String())
}

func parseJavaVersionOutput(out string) (string, error) {
	m := versionRe.FindStringSubmatch(out)
	if len(m) < 2 {
		return "", fmt.Errorf("failed to parse version from: %s", out)
	}
	return m[1], nil
}

// javaMajor reads the feature release out of a java version string,
// mapping the legacy "1.x" scheme to x.
func javaMajor(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "1."); ok {
		raw = rest
	}
	raw, _, _ = strings.Cut(raw, "_")

	v, err := semver.NewVersion(raw)
	if err != nil {
		return 0, fmt.Errorf("parse java version %q: %w", raw, err)
	}
	return int(v.Major()), nil
}
