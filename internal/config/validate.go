package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "warning": true, "error": true,
}

var recognizedLogFormats = map[string]bool{"text": true, "json": true}

var recognizedLogOutputs = map[string]bool{"stdout": true, "stderr": true, "file": true}

// Validate checks a Config for structural and semantic errors. It
// returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Tool.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{Field: "tool.timeout_seconds", Message: "must be > 0"})
	}

	if !recognizedLogLevels[cfg.Log.Level] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unrecognized level %q", cfg.Log.Level),
		})
	}
	if !recognizedLogFormats[cfg.Log.Format] {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("unrecognized format %q", cfg.Log.Format),
		})
	}
	if !recognizedLogOutputs[cfg.Log.Output] {
		errs = append(errs, ValidationError{
			Field:   "log.output",
			Message: fmt.Sprintf("unrecognized output %q", cfg.Log.Output),
		})
	}
	if cfg.Log.Output == "file" && cfg.Log.FilePath == "" {
		errs = append(errs, ValidationError{Field: "log.file_path", Message: "is required when log.output is file"})
	}

	return errs
}
