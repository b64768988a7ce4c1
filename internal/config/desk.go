package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// DeskConfig configures the case-desk client.
type DeskConfig struct {
	ServerURL      string        `env:"CASE_REGISTER_URL" envDefault:"http://localhost:3001"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	StoreDriver string `env:"DESK_STORE_DRIVER" envDefault:"sqlite"`
	StorePath   string `env:"DESK_STORE_PATH"`

	ExportDir  string `env:"EXPORT_DIR" envDefault:"."`
	SampleRate int    `env:"SAMPLE_RATE" envDefault:"16000"`

	LogFile  string `env:"DESK_LOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// DeskOverrides holds case-desk CLI flag values.
type DeskOverrides struct {
	EnvFile     string
	ServerURL   string
	StoreDriver string
	StorePath   string
	ExportDir   string
}

// LoadDesk reads the desk configuration with the same precedence as Load.
func LoadDesk(overrides DeskOverrides) (*DeskConfig, error) {
	loadEnvFile(overrides.EnvFile)

	cfg := &DeskConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.ServerURL != "" {
		cfg.ServerURL = overrides.ServerURL
	}
	if overrides.StoreDriver != "" {
		cfg.StoreDriver = overrides.StoreDriver
	}
	if overrides.StorePath != "" {
		cfg.StorePath = overrides.StorePath
	}
	if overrides.ExportDir != "" {
		cfg.ExportDir = overrides.ExportDir
	}

	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath(cfg.StoreDriver)
	}

	return cfg, nil
}

// DefaultStorePath returns ~/.case-register/desk.sqlite for the sqlite
// driver and ~/.case-register/state for the directory driver.
func DefaultStorePath(driver string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".case-register")
	if driver == "dir" {
		return filepath.Join(base, "state")
	}
	return filepath.Join(base, "desk.sqlite")
}
