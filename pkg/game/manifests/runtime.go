package manifests

/////////////////////////////////////////////////////////////////////
// Java runtimes: platform index, then one file manifest per release
/////////////////////////////////////////////////////////////////////

// RuntimeIndex maps a platform key (linux, mac-os-arm64, windows-x64...)
// to the releases published for each runtime component.
type RuntimeIndex map[string]map[string][]RuntimeRelease

const (
	RuntimeFileType      = "file"
	RuntimeDirectoryType = "directory"
	RuntimeLinkType      = "link"
)

type RuntimeRelease struct {
	Manifest Artifact       `json:"manifest"`
	Version  RuntimeVersion `json:"version"`
}

type RuntimeVersion struct {
	Name     string `json:"name"`
	Released string `json:"released"`
}

type RuntimeManifest struct {
	Files map[string]RuntimeFile `json:"files"`
}

type RuntimeFile struct {
	Type       string               `json:"type"`
	Executable bool                 `json:"executable,omitempty"`
	Target     string               `json:"target,omitempty"`
	Downloads  RuntimeFileDownloads `json:"downloads,omitempty"`
}

type RuntimeFileDownloads struct {
	Raw  *Artifact `json:"raw,omitempty"`
	LZMA *Artifact `json:"lzma,omitempty"`
}

// Release returns the first release of component for platform.
func (i RuntimeIndex) Release(platform, component string) (RuntimeRelease, bool) {
	releases := i[platform][component]
	if len(releases) == 0 {
		return RuntimeRelease{}, false
	}
	return releases[0], true
}
