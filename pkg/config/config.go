package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultManifestURL  = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	DefaultResourcesURL = "https://resources.download.minecraft.net"
	DefaultFolderName   = "minecraft"

	DefaultRuntimeIndexURL = "https://launchermeta.mojang.com/v1/products/java-runtime/2ec0cc96c44e5a76b9c8b7c39df7210883d12871/all.json"
)

// Config holds the runtime settings of the pipeline. Values come from
// GAMEPIPE_* environment variables and may be overridden by CLI flags.
type Config struct {
	RootDir      string `env:"GAMEPIPE_ROOT_DIR"`
	FolderName   string `env:"GAMEPIPE_FOLDER_NAME" envDefault:"minecraft"`
	ManifestURL  string `env:"GAMEPIPE_MANIFEST_URL" envDefault:"https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"`
	ResourcesURL string `env:"GAMEPIPE_RESOURCES_URL" envDefault:"https://resources.download.minecraft.net"`
	// RuntimeIndexURL lists the Java runtimes published per platform.
	RuntimeIndexURL string `env:"GAMEPIPE_RUNTIME_INDEX_URL" envDefault:"https://launchermeta.mojang.com/v1/products/java-runtime/2ec0cc96c44e5a76b9c8b7c39df7210883d12871/all.json"`

	Concurrency int           `env:"GAMEPIPE_CONCURRENCY" envDefault:"10"`
	MaxTries    int           `env:"GAMEPIPE_MAX_TRIES" envDefault:"5"`
	HTTPTimeout time.Duration `env:"GAMEPIPE_HTTP_TIMEOUT" envDefault:"30s"`

	JavaPath        string `env:"GAMEPIPE_JAVA_PATH"`
	LauncherName    string `env:"GAMEPIPE_LAUNCHER_NAME" envDefault:"gamepipe"`
	LauncherVersion string `env:"GAMEPIPE_LAUNCHER_VERSION" envDefault:"1.0.0"`

	MetricsAddr  string `env:"GAMEPIPE_METRICS_ADDR"`
	OTelEndpoint string `env:"GAMEPIPE_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and fills the root directory
// with the per-OS default when it is unset.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.RootDir == "" {
		root, err := DefaultRootDir(cfg.FolderName)
		if err != nil {
			return Config{}, err
		}
		cfg.RootDir = root
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root directory is required")
	}
	if c.ManifestURL == "" {
		return fmt.Errorf("manifest url is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxTries < 1 {
		return fmt.Errorf("max tries must be at least 1, got %d", c.MaxTries)
	}
	return nil
}
