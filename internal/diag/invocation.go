package diag

import (
	"strings"
	"time"
)

// Invocation is the fully built command line for one request. It is a
// value and is never mutated after construction. Arguments stay as
// discrete tokens so filter or path values containing shell
// metacharacters can never be re-interpreted by a shell.
type Invocation struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// String renders the invocation for display (dry-run reports, logs).
func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Path}, inv.Args...), " ")
}

// BuildInvocation maps validated options plus the probed tool path to a
// concrete command line. outputPath is the resolved destination for run
// mode (the caller's output_path or a temp file) and is ignored for the
// other modes. Pure: no filesystem or process access.
func BuildInvocation(opts *RequestOptions, toolPath, outputPath string) (Invocation, error) {
	if err := opts.Validate(); err != nil {
		return Invocation{}, err
	}

	var args []string
	switch opts.Mode {
	case ModeValidate:
		args = []string{"--version"}

	case ModeList:
		args = []string{"--list-plugins", "--list-categories", "--description"}
		if f := normalizeFilter(opts.Filter); f != "" {
			args = append(args, "-i", f)
		}
		if opts.quietEnabled() {
			args = append(args, "-q")
		}

	case ModeRun:
		args = []string{"-l"}
		if f := normalizeFilter(opts.Filter); f != "" {
			args = append(args, "-i", f)
		}
		if opts.quietEnabled() {
			args = append(args, "-q")
		}
		if outputPath != "" {
			args = append(args, "--output", outputPath)
		}
		// RISU's own flag convention for non-JSON report formats.
		switch opts.OutputFormat {
		case FormatHTML:
			args = append(args, "-h")
		case FormatText:
			args = append(args, "-t")
		}
	}

	return Invocation{
		Path:    toolPath,
		Args:    args,
		Timeout: time.Duration(opts.effectiveTimeout()) * time.Second,
	}, nil
}
