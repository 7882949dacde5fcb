package manifests

import (
	"encoding/json"
	"fmt"
	"strings"
)

/////////////////////////////////////////////////////////////////////
// VersionManifest: index of every known release
/////////////////////////////////////////////////////////////////////

type VersionManifest struct {
	Latest   LatestVersions   `json:"latest"`
	Versions []VersionSummary `json:"versions"`
}

const (
	ReleaseType  = "release"
	SnapshotType = "snapshot"
)

type LatestVersions struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

type VersionSummary struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	SHA1        string `json:"sha1,omitempty"`
	Time        string `json:"time,omitempty"`
	ReleaseTime string `json:"releaseTime,omitempty"`
}

// Find returns the summary whose id is exactly id.
func (m *VersionManifest) Find(id string) (VersionSummary, bool) {
	for _, v := range m.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return VersionSummary{}, false
}

// IDs lists the version ids in manifest order, optionally keeping only
// releases.
func (m *VersionManifest) IDs(releaseOnly bool) []string {
	versions := []string{}
	for _, v := range m.Versions {
		if releaseOnly && v.Type != ReleaseType {
			continue
		}
		versions = append(versions, v.ID)
	}
	return versions
}

/////////////////////////////////////////////////////////////////////
// VersionDescriptor: resolved metadata of one release
/////////////////////////////////////////////////////////////////////

type ArgumentType string

const (
	ArgumentJVM  ArgumentType = "jvm"
	ArgumentGame ArgumentType = "game"
)

type VersionDescriptor struct {
	ID                 string                      `json:"id"`
	MainClass          string                      `json:"mainClass"`
	MinecraftArguments string                      `json:"minecraftArguments,omitempty"`
	Arguments          map[ArgumentType][]Argument `json:"arguments,omitempty"`
	Libraries          []Library                   `json:"libraries"`
	AssetIndex         AssetIndexRef               `json:"assetIndex"`
	Assets             string                      `json:"assets"`
	Type               string                      `json:"type"`
	Downloads          map[string]Artifact         `json:"downloads"`
	JavaVersion        *JavaVersion                `json:"javaVersion,omitempty"`
}

type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
	URL       string `json:"url"`
}

type JavaVersion struct {
	Component    string `json:"component"`
	MajorVersion int    `json:"majorVersion"`
}

// LegacyAssets is the assets tag selecting the mirrored legacy layout.
const LegacyAssets = "legacy"

// Client returns the client jar download entry.
func (v *VersionDescriptor) Client() (Artifact, bool) {
	a, ok := v.Downloads["client"]
	return a, ok && a.URL != ""
}

// Validate checks the structural invariants a descriptor resolved for id
// must hold before anything downstream consumes it.
func (v *VersionDescriptor) Validate(id string) error {
	if v.ID != id {
		return fmt.Errorf("descriptor id %q does not match requested version %q", v.ID, id)
	}
	if strings.TrimSpace(v.MainClass) == "" {
		return fmt.Errorf("descriptor %q has no main class", id)
	}
	if _, err := v.ArgumentSet(); err != nil {
		return err
	}
	return nil
}

// ArgumentSet returns whichever argument representation the descriptor
// carries. Exactly one of them must be present.
func (v *VersionDescriptor) ArgumentSet() (ArgumentSet, error) {
	modern := v.Arguments != nil
	legacy := v.MinecraftArguments != ""
	switch {
	case modern && legacy:
		return nil, fmt.Errorf("descriptor %q carries both arguments and minecraftArguments", v.ID)
	case modern:
		return ModernArguments{JVM: v.Arguments[ArgumentJVM], Game: v.Arguments[ArgumentGame]}, nil
	case legacy:
		return LegacyArguments{Template: v.MinecraftArguments}, nil
	default:
		return nil, fmt.Errorf("descriptor %q carries no arguments", v.ID)
	}
}

/////////////////////////////////////////////////////////////////////
// Libraries
/////////////////////////////////////////////////////////////////////

type Artifact struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type LibraryDownloads struct {
	Artifact    *Artifact            `json:"artifact,omitempty"`
	Classifiers map[string]*Artifact `json:"classifiers,omitempty"`
}

type ExtractRules struct {
	Exclude []string `json:"exclude,omitempty"`
}

type Library struct {
	Name      string            `json:"name"`
	Downloads LibraryDownloads  `json:"downloads"`
	Natives   map[string]string `json:"natives,omitempty"` // os name -> classifier key
	Rules     []Rule            `json:"rules,omitempty"`
	Extract   *ExtractRules     `json:"extract,omitempty"`
	URL       string            `json:"url,omitempty"` // maven repository base
}

// JarDownload locates a library's own jar: its path below the libraries
// directory, where to fetch it and the expected SHA-1 (empty when the
// repository publishes none).
type JarDownload struct {
	Path string
	URL  string
	SHA1 string
}

// MainJar reports how the library's own jar is obtained. It is the single
// rule for both downloading and the classpath: a library contributes a jar
// only when it can be fetched, either from its artifact entry or, for
// libraries without one, from its maven repository. Native-only libraries
// and libraries with nowhere to fetch from have no main jar.
func (l *Library) MainJar() (JarDownload, bool, error) {
	if art := l.Downloads.Artifact; art != nil {
		if art.URL == "" {
			return JarDownload{}, false, nil
		}
		rel := art.Path
		if rel == "" {
			p, err := MavenPath(l.Name, "")
			if err != nil {
				return JarDownload{}, false, err
			}
			rel = p
		}
		return JarDownload{Path: rel, URL: art.URL, SHA1: art.SHA1}, true, nil
	}

	if l.URL == "" || l.Natives != nil {
		return JarDownload{}, false, nil
	}
	rel, err := MavenPath(l.Name, "")
	if err != nil {
		return JarDownload{}, false, err
	}
	return JarDownload{Path: rel, URL: strings.TrimSuffix(l.URL, "/") + "/" + rel}, true, nil
}

// MavenPath turns group:artifact:version[:classifier] into the repository
// layout path. A non-empty classifier overrides the coordinate's own.
func MavenPath(coord, classifier string) (string, error) {
	parts := strings.Split(coord, ":")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid maven coordinate format: %s (expected groupId:artifactId:version)", coord)
	}

	group := strings.ReplaceAll(parts[0], ".", "/")
	artifact, version := parts[1], parts[2]
	if classifier == "" && len(parts) > 3 {
		classifier = parts[3]
	}

	file := artifact + "-" + version
	if classifier != "" {
		file += "-" + classifier
	}
	return fmt.Sprintf("%s/%s/%s/%s.jar", group, artifact, version, file), nil
}

/////////////////////////////////////////////////////////////////////
// Rules
/////////////////////////////////////////////////////////////////////

type RuleAction string

const (
	Allow    RuleAction = "allow"
	Disallow RuleAction = "disallow"
)

func (a *RuleAction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch RuleAction(s) {
	case Allow, Disallow:
		*a = RuleAction(s)
		return nil
	}
	return fmt.Errorf("unknown rule action %q", s)
}

type OSRule struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"` // regular expression on the OS release
	Arch    string `json:"arch,omitempty"`
}

type Rule struct {
	Action   RuleAction      `json:"action"`
	OS       *OSRule         `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}
