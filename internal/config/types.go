package config

// Config is the top-level configuration parsed from risuctl YAML.
// Everything has a working default; a missing config file is not an
// error.
type Config struct {
	Tool  Tool  `yaml:"tool"`
	Jobs  Jobs  `yaml:"jobs"`
	Serve Serve `yaml:"serve"`
	Log   Log   `yaml:"log"`
}

// Tool holds defaults for the diagnostic executable.
type Tool struct {
	Path           string `yaml:"path"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Jobs configures the async job registry and spool location.
type Jobs struct {
	DBPath   string `yaml:"db_path"`
	SpoolDir string `yaml:"spool_dir"`
}

// Serve configures the HTTP surface.
type Serve struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Log configures structured logging output.
type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
