package diag

import (
	"errors"
	"fmt"
)

// Kind classifies an execution-level failure so callers can decide
// whether to retry, fix their input, or halt.
type Kind string

const (
	KindToolNotFound     Kind = "tool_not_found"
	KindInvalidOptions   Kind = "invalid_options"
	KindTimeout          Kind = "timeout"
	KindExecutionFailure Kind = "execution_failure"
	KindParseError       Kind = "parse_error"
	KindPermission       Kind = "permission_error"
)

// Error is the single error type the engine returns across its boundary.
// Path names the file or executable involved when one is relevant, and
// Raw carries unparseable tool output so callers can inspect it manually.
type Error struct {
	Kind Kind
	Msg  string
	Path string
	Raw  string
	err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a cause to a classified error.
func WrapErr(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the failure classification from an error chain.
// Unclassified errors report as execution failures.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindExecutionFailure
}
