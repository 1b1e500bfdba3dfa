package diag

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Outcome holds everything captured from one synchronous execution.
type Outcome struct {
	ExitCode int     `json:"exit_code"`
	Stdout   string  `json:"stdout"`
	Stderr   string  `json:"stderr"`
	Elapsed  float64 `json:"elapsed"`
	TimedOut bool    `json:"timed_out"`
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// ExecRunner executes invocations as real child processes. The child is
// placed in its own process group so a timeout kills the whole tree,
// not just the direct child.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Path, inv.Args...)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid addresses the process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	err := cmd.Run()
	out := Outcome{
		Stdout:  stdoutBuf.String(),
		Stderr:  stderrBuf.String(),
		Elapsed: time.Since(start).Seconds(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		out.TimedOut = true
		out.ExitCode = -1
		return out, nil
	}
	if errors.Is(runCtx.Err(), context.Canceled) {
		// The caller withdrew, not the tool. Without this the killed
		// child's exit would be misread as a tool failure.
		out.ExitCode = -1
		return out, &Error{Kind: KindExecutionFailure, Msg: "run canceled before completion", Path: inv.Path, err: runCtx.Err()}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The tool ran and exited non-zero. Whether that is an
			// error is a mode-level policy, not the runner's call.
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		out.ExitCode = -1
		if errors.Is(err, os.ErrPermission) {
			return out, &Error{Kind: KindPermission, Msg: "cannot execute tool", Path: inv.Path, err: err}
		}
		return out, &Error{Kind: KindExecutionFailure, Msg: "process could not start", Path: inv.Path, err: err}
	}

	return out, nil
}
