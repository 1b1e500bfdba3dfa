package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/risuops/risuctl/internal/diag"
)

// execCmd is the framework-facing boundary: a RequestOptions document
// on stdin, the full response document on stdout. Errors never escape
// as anything but a structured failure response, so the host framework
// can render a consistent report.
var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Execute a JSON request from stdin and write the JSON response to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}

		var opts diag.RequestOptions
		var resp *diag.Response
		if err := json.Unmarshal(body, &opts); err != nil {
			resp = &diag.Response{
				Failed: true,
				RC:     -1,
				Msg:    "malformed request: " + err.Error(),
				Error:  &diag.ErrorInfo{Kind: diag.KindInvalidOptions, Msg: err.Error()},
			}
			return emit(cmd, resp)
		}

		cfg, adapter, _, cleanup, err := openDeps()
		if err != nil {
			resp = &diag.Response{
				Failed: true,
				RC:     -1,
				Msg:    err.Error(),
				Error:  &diag.ErrorInfo{Kind: diag.KindExecutionFailure, Msg: err.Error()},
			}
			return emit(cmd, resp)
		}
		defer cleanup()

		if opts.ToolPath == "" {
			opts.ToolPath = cfg.Tool.Path
		}

		// A poll request: job_id with async_mode reuses or creates the
		// job; job_id alone retrieves it.
		if opts.JobID != "" && !opts.AsyncMode {
			resp = adapter.Poll(opts.JobID)
		} else {
			resp = adapter.Execute(cmd.Context(), &opts)
		}
		return emit(cmd, resp)
	},
}

func emit(cmd *cobra.Command, resp *diag.Response) error {
	out, err := resp.JSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	if resp.Failed {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return errors.New(resp.Msg)
	}
	return nil
}
