package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

type Directory string

const (
	DirectoryAssets       Directory = "assets"
	DirectoryLegacyAssets Directory = "resources"
	DirectoryNatives      Directory = "natives"
	DirectoryLibraries    Directory = "libraries"
	DirectoryVersions     Directory = "versions"
	DirectoryRuntime      Directory = "runtime"
)

// LaunchOptions is the set of absolute directories the pipeline reads and
// writes. Every path must exist or be creatable.
type LaunchOptions struct {
	RootDir         string
	AssetsDir       string
	LegacyAssetsDir string
	GameDir         string
	NativesDir      string
	LibrariesDir    string
	ClientDir       string
	// RuntimeDir holds downloaded Java runtimes, one directory per component.
	RuntimeDir      string
}

// DefaultRootDir returns the conventional per-OS data directory for
// folderName.
func DefaultRootDir(folderName string) (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", folderName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA is not set")
		}
		return filepath.Join(appData, "."+folderName), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "."+folderName), nil
	}
}

// NewLaunchOptions derives the standard layout below root. The game
// directory is the root itself.
func NewLaunchOptions(root string) (LaunchOptions, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return LaunchOptions{}, fmt.Errorf("resolve root %q: %w", root, err)
	}
	return LaunchOptions{
		RootDir:         abs,
		AssetsDir:       filepath.Join(abs, string(DirectoryAssets)),
		LegacyAssetsDir: filepath.Join(abs, string(DirectoryLegacyAssets)),
		GameDir:         abs,
		NativesDir:      filepath.Join(abs, string(DirectoryNatives)),
		LibrariesDir:    filepath.Join(abs, string(DirectoryLibraries)),
		ClientDir:       filepath.Join(abs, string(DirectoryVersions)),
		RuntimeDir:      filepath.Join(abs, string(DirectoryRuntime)),
	}, nil
}

func (o LaunchOptions) dirs() []string {
	return []string{o.RootDir, o.AssetsDir, o.LegacyAssetsDir, o.GameDir, o.NativesDir, o.LibrariesDir, o.ClientDir, o.RuntimeDir}
}

// EnsureDirs creates every directory of the layout.
func (o LaunchOptions) EnsureDirs() error {
	for _, dir := range o.dirs() {
		if dir == "" {
			return fmt.Errorf("launch options contain an empty directory")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// VersionDir is the per-version directory below ClientDir.
func (o LaunchOptions) VersionDir(id string) string {
	return filepath.Join(o.ClientDir, id)
}

// ClientJar is the client jar location for version id.
func (o LaunchOptions) ClientJar(id string) string {
	return filepath.Join(o.ClientDir, id, id+".jar")
}

// DescriptorPath is the cached descriptor location for version id.
func (o LaunchOptions) DescriptorPath(id string) string {
	return filepath.Join(o.ClientDir, id, id+".json")
}

// VersionNativesDir is the extraction target for version id's natives.
func (o LaunchOptions) VersionNativesDir(id string) string {
	return filepath.Join(o.NativesDir, id)
}

// RuntimeHome is the install directory of a Java runtime component.
func (o LaunchOptions) RuntimeHome(component string) string {
	return filepath.Join(o.RuntimeDir, component)
}

// AssetIndexPath is the cached asset index location for index id.
func (o LaunchOptions) AssetIndexPath(id string) string {
	return filepath.Join(o.AssetsDir, "indexes", id+".json")
}

// AssetObjectPath is the location of an object given its relative
// "xx/hash" path.
func (o LaunchOptions) AssetObjectPath(rel string) string {
	return filepath.Join(o.AssetsDir, "objects", filepath.FromSlash(rel))
}
