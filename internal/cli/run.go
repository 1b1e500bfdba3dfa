package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/risuops/risuctl/internal/diag"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run diagnostics and report normalized results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		toolPath, _ := cmd.Flags().GetString("tool-path")
		filter, _ := cmd.Flags().GetString("filter")
		output, _ := cmd.Flags().GetString("output")
		outputFormat, _ := cmd.Flags().GetString("output-format")
		quiet, _ := cmd.Flags().GetBool("quiet")
		timeout, _ := cmd.Flags().GetInt("timeout")
		async, _ := cmd.Flags().GetBool("async")
		jobID, _ := cmd.Flags().GetString("job-id")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, adapter, _, cleanup, err := openDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		effTimeout := timeout
		if effTimeout == 0 {
			effTimeout = cfg.Tool.TimeoutSeconds
		}

		opts := &diag.RequestOptions{
			Mode:           diag.ModeRun,
			ToolPath:       firstNonEmpty(toolPath, cfg.Tool.Path),
			Filter:         filter,
			OutputPath:     output,
			OutputFormat:   outputFormat,
			Quiet:          &quiet,
			TimeoutSeconds: effTimeout,
			AsyncMode:      async,
			JobID:          jobID,
			DryRun:         dryRun,
		}
		resp := adapter.Execute(cmd.Context(), opts)

		if asJSON {
			return printJSON(cmd, resp)
		}
		if resp.Failed {
			return respError(cmd, resp)
		}

		w := cmd.OutOrStdout()
		switch {
		case resp.DryRun:
			fmt.Fprintf(w, "DRY RUN: would execute %v\n", resp.Cmd)

		case resp.JobID != "":
			fmt.Fprintf(w, "started detached run, job_id=%s\n", resp.JobID)
			fmt.Fprintf(w, "poll with: risuctl poll %s\n", resp.JobID)

		default:
			if resp.Results != nil {
				for _, e := range resp.Results.Entries {
					fmt.Fprintf(w, "[%-5s] %s\n", e.Status, e.PluginName)
				}
			}
			if resp.Summary != nil {
				fmt.Fprintf(w, "\n%d checks: %d pass, %d fail, %d skip, %d error (%.1fs)\n",
					resp.Summary.Total, resp.Summary.Pass, resp.Summary.Fail,
					resp.Summary.Skip, resp.Summary.Error, resp.Elapsed)
			}
			if resp.OutputFile != "" {
				fmt.Fprintf(w, "results written to %s\n", resp.OutputFile)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("tool-path", "", "Path to the risu executable")
	runCmd.Flags().String("filter", "", "Include filter passed to the tool")
	runCmd.Flags().String("output", "", "Output file for results")
	runCmd.Flags().String("output-format", "", "Tool output format: json, html, or text (default json)")
	runCmd.Flags().Bool("quiet", true, "Pass -q to the tool to reduce noise")
	runCmd.Flags().Int("timeout", 0, "Timeout in seconds (default 300)")
	runCmd.Flags().Bool("async", false, "Start a detached run and return a job id")
	runCmd.Flags().String("job-id", "", "Job id for the detached run (generated when omitted)")
	runCmd.Flags().Bool("dry-run", false, "Report the intended invocation without executing")
	runCmd.Flags().Bool("json", false, "Emit the full response as JSON")
}
