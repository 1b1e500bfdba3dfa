package diag

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Probe confirms the tool exists and is runnable at toolPath, resolving
// bare command names through PATH, and returns the resolved path. It
// never executes the tool; version queries are a mode-level concern.
func Probe(toolPath string) (string, error) {
	if toolPath == "" {
		toolPath = DefaultToolPath
	}

	// A bare command name gets resolved through PATH, matching how an
	// operator would type it.
	if filepath.Base(toolPath) == toolPath {
		if resolved, err := exec.LookPath(toolPath); err == nil {
			toolPath = resolved
		}
	}

	fi, err := os.Stat(toolPath)
	if err != nil {
		if os.IsPermission(err) {
			return "", &Error{Kind: KindPermission, Msg: "cannot access tool", Path: toolPath, err: err}
		}
		return "", &Error{Kind: KindToolNotFound, Msg: "tool not found in PATH or at provided path", Path: toolPath, err: err}
	}
	if fi.IsDir() || fi.Mode()&0o111 == 0 {
		return "", &Error{Kind: KindPermission, Msg: "tool is not executable", Path: toolPath}
	}

	return toolPath, nil
}
