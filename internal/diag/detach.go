package diag

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

var (
	detachedExecCommand  = exec.Command
	detachedOSExecutable = os.Executable
)

// LaunchDetached re-invokes the current binary with the given arguments
// as a fully detached worker process. The worker's combined output goes
// to spool files under spoolDir so a later poll can recover it. Returns
// the worker pid; the worker survives the launching process.
func LaunchDetached(spoolDir string, args []string) (int, error) {
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return 0, WrapErr(KindPermission, err, "create job spool directory %s", spoolDir)
	}

	outFile, err := os.OpenFile(filepath.Join(spoolDir, "worker.out"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, WrapErr(KindPermission, err, "open worker spool file")
	}
	defer outFile.Close()

	exePath, err := executablePath()
	if err != nil {
		return 0, err
	}

	cmd := detachedExecCommand(exePath, args...)
	cmd.Dir = spoolDir
	cmd.Stdin = nil
	cmd.Stdout = outFile
	cmd.Stderr = outFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, WrapErr(KindExecutionFailure, err, "start detached worker")
	}
	pid := cmd.Process.Pid

	pidPath := filepath.Join(spoolDir, "worker.pid")
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", pid)), 0o644); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Process.Release()
		return 0, WrapErr(KindPermission, err, "write pid file %s", pidPath)
	}

	if err := cmd.Process.Release(); err != nil {
		return 0, WrapErr(KindExecutionFailure, err, "release detached worker")
	}
	return pid, nil
}

func executablePath() (string, error) {
	if exePath, err := detachedOSExecutable(); err == nil && exePath != "" {
		if filepath.IsAbs(exePath) {
			return exePath, nil
		}
		if abs, absErr := filepath.Abs(exePath); absErr == nil {
			return abs, nil
		}
	}
	arg0 := os.Args[0]
	if arg0 == "" {
		return "", Errorf(KindExecutionFailure, "cannot resolve executable path for detached run")
	}
	if filepath.IsAbs(arg0) {
		return arg0, nil
	}
	abs, err := filepath.Abs(arg0)
	if err != nil {
		return "", WrapErr(KindExecutionFailure, err, "resolve detached executable path")
	}
	return abs, nil
}
