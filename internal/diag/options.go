package diag

import "strings"

// Mode selects which of the three operations a request performs.
type Mode string

const (
	ModeValidate Mode = "validate"
	ModeList     Mode = "list"
	ModeRun      Mode = "run"
)

// Output formats the tool can emit. Only JSON yields structured entries;
// the others forfeit parsing and capture raw content.
const (
	FormatJSON = "json"
	FormatHTML = "html"
	FormatText = "text"
)

// DefaultToolPath is where a stock RISU install lands.
const DefaultToolPath = "/usr/bin/risu"

// Default timeouts. List and validate get shorter bounds because
// neither runs any checks.
const (
	DefaultRunTimeout      = 300
	DefaultListTimeout     = 60
	defaultValidateTimeout = 30
)

// RequestOptions is the caller-owned input to a single request.
// The engine treats it as read-only.
type RequestOptions struct {
	Mode           Mode   `json:"mode" yaml:"mode"`
	ToolPath       string `json:"tool_path,omitempty" yaml:"tool_path"`
	Filter         string `json:"filter,omitempty" yaml:"filter"`
	OutputPath     string `json:"output_path,omitempty" yaml:"output_path"`
	OutputFormat   string `json:"output_format,omitempty" yaml:"output_format"`
	Quiet          *bool  `json:"quiet,omitempty" yaml:"quiet"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds"`
	AsyncMode      bool   `json:"async_mode,omitempty" yaml:"async_mode"`
	JobID          string `json:"job_id,omitempty" yaml:"job_id"`
	DryRun         bool   `json:"dry_run,omitempty" yaml:"dry_run"`
}

// quietEnabled resolves the quiet flag, which defaults to true.
func (o *RequestOptions) quietEnabled() bool {
	if o.Quiet == nil {
		return true
	}
	return *o.Quiet
}

// effectiveTimeout resolves the timeout in seconds for the given mode.
// Zero means "use the mode default"; negatives are rejected by Validate.
func (o *RequestOptions) effectiveTimeout() int {
	if o.TimeoutSeconds > 0 {
		return o.TimeoutSeconds
	}
	switch o.Mode {
	case ModeList:
		return DefaultListTimeout
	case ModeValidate:
		return defaultValidateTimeout
	}
	return DefaultRunTimeout
}

// Validate rejects mode and field combinations the builder cannot
// translate into a safe invocation.
func (o *RequestOptions) Validate() error {
	switch o.Mode {
	case ModeValidate, ModeList, ModeRun:
	case "":
		return Errorf(KindInvalidOptions, "mode is required (validate, list, or run)")
	default:
		return Errorf(KindInvalidOptions, "unknown mode %q", o.Mode)
	}

	switch o.OutputFormat {
	case "", FormatJSON, FormatHTML, FormatText:
	default:
		return Errorf(KindInvalidOptions, "unknown output_format %q", o.OutputFormat)
	}

	if o.Mode != ModeRun {
		if o.OutputPath != "" {
			return Errorf(KindInvalidOptions, "output_path is only valid in run mode, not %s", o.Mode)
		}
		if o.OutputFormat != "" && o.OutputFormat != FormatJSON {
			return Errorf(KindInvalidOptions, "output_format is only valid in run mode, not %s", o.Mode)
		}
	}

	if o.TimeoutSeconds < 0 {
		return Errorf(KindInvalidOptions, "timeout_seconds must be > 0, got %d", o.TimeoutSeconds)
	}

	if o.AsyncMode && o.Mode != ModeRun {
		return Errorf(KindInvalidOptions, "async_mode is only valid in run mode")
	}

	if o.JobID != "" && !o.AsyncMode {
		return Errorf(KindInvalidOptions, "job_id is only meaningful with async_mode")
	}

	return nil
}

// normalizeFilter trims whitespace so an all-blank filter means "no
// filtering" instead of an empty -i argument the tool would read as
// "match nothing".
func normalizeFilter(filter string) string {
	return strings.TrimSpace(filter)
}
