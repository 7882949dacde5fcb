// Package rules evaluates the allow/disallow rules attached to libraries and
// argument fragments against the platform the launcher runs on.
package rules

import (
	"regexp"
	"runtime"
	"strings"
	"sync"

	"limeal.fr/gamepipe/pkg/game/manifests"
)

// Env is the platform a rule list is evaluated against.
type Env struct {
	OS        string // windows | osx | linux, as named in descriptors
	Arch      string // GOARCH
	OSRelease string
}

var (
	currentOnce sync.Once
	current     Env
)

// Current returns the detected environment of this process.
func Current() Env {
	currentOnce.Do(func() {
		current = DetectEnv()
	})
	return current
}

func DetectEnv() Env {
	return Env{
		OS:        OSName(runtime.GOOS),
		Arch:      runtime.GOARCH,
		OSRelease: osRelease(),
	}
}

// OSName maps a GOOS value to the name descriptors use.
func OSName(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	default:
		return goos
	}
}

// Evaluate is the logical AND of every rule; an empty list is true.
func Evaluate(rulesList []manifests.Rule, env Env) bool {
	for _, r := range rulesList {
		if !EvaluateRule(r, env) {
			return false
		}
	}
	return true
}

func EvaluateRule(r manifests.Rule, env Env) bool {
	var result bool
	switch {
	case r.OS != nil:
		result = MatchOS(r.OS, env)
	case r.Features != nil:
		// No feature is ever enabled.
		result = false
	default:
		result = true
	}

	if r.Action == manifests.Disallow {
		return !result
	}
	return result
}

// MatchOS checks arch, then name, then the release regular expression. A
// release pattern that does not compile places no constraint.
func MatchOS(o *manifests.OSRule, env Env) bool {
	if o.Arch != "" && !archMatches(o.Arch, env.Arch) {
		return false
	}
	if o.Name != "" && o.Name != env.OS {
		return false
	}
	if o.Version != "" {
		if re, err := regexp.Compile(o.Version); err == nil && !re.MatchString(env.OSRelease) {
			return false
		}
	}
	return true
}

func archMatches(rule, goarch string) bool {
	switch strings.ToLower(rule) {
	case "x86":
		return goarch == "386" || goarch == "amd64"
	case "x86_64", "amd64":
		return goarch == "amd64"
	case "arm":
		return goarch == "arm"
	case "arm64", "aarch64":
		return goarch == "arm64"
	}
	return false
}

// NativeClassifier returns the classifier key holding the library's native
// binaries for env, and false when it has none for env. The artifact is nil
// when the descriptor lists no download for that key.
func NativeClassifier(lib *manifests.Library, env Env) (string, *manifests.Artifact, bool) {
	key, ok := lib.Natives[env.OS]
	if !ok {
		return "", nil, false
	}

	bits := "32"
	if env.Arch == "amd64" || env.Arch == "arm64" {
		bits = "64"
	}
	key = strings.ReplaceAll(key, "${arch}", bits)

	artifact := lib.Downloads.Classifiers[key]
	return key, artifact, true
}
