package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/risuops/risuctl/internal/diag"
)

// Load reads and parses a config from the given YAML file path, then
// fills in defaults for anything unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches standard locations and loads the first config
// found. Search order: ./risuctl.yaml, ~/.risuctl/config.yaml,
// /etc/risuctl/config.yaml. No file at all yields a pure-defaults
// config rather than an error.
func LoadDefault() (*Config, error) {
	candidates := []string{"risuctl.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".risuctl", "config.yaml"))
	}
	candidates = append(candidates, "/etc/risuctl/config.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &Config{}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Tool.Path == "" {
		cfg.Tool.Path = diag.DefaultToolPath
	}
	if cfg.Tool.TimeoutSeconds == 0 {
		cfg.Tool.TimeoutSeconds = diag.DefaultRunTimeout
	}

	home, _ := os.UserHomeDir()
	if cfg.Jobs.DBPath == "" && home != "" {
		cfg.Jobs.DBPath = filepath.Join(home, ".risuctl", "jobs.db")
	}
	if cfg.Jobs.SpoolDir == "" && home != "" {
		cfg.Jobs.SpoolDir = filepath.Join(home, ".risuctl", "jobs")
	}

	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = ":8099"
	}
	if len(cfg.Serve.AllowedOrigins) == 0 {
		cfg.Serve.AllowedOrigins = []string{"*"}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 14
	}
}
