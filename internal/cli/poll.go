package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/risuops/risuctl/internal/diag"
)

var pollCmd = &cobra.Command{
	Use:   "poll [job-id]",
	Short: "Poll a detached diagnostic run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		_, adapter, _, cleanup, err := openDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		resp := adapter.Poll(args[0])

		if asJSON {
			return printJSON(cmd, resp)
		}
		if resp.Failed {
			return respError(cmd, resp)
		}

		w := cmd.OutOrStdout()
		if resp.JobStatus == diag.JobRunning {
			fmt.Fprintf(w, "job %s is still running\n", resp.JobID)
			return nil
		}
		fmt.Fprintf(w, "job %s %s (rc=%d)\n", resp.JobID, resp.JobStatus, resp.RC)
		if resp.Summary != nil {
			fmt.Fprintf(w, "%d checks: %d pass, %d fail, %d skip, %d error\n",
				resp.Summary.Total, resp.Summary.Pass, resp.Summary.Fail,
				resp.Summary.Skip, resp.Summary.Error)
		}
		if resp.OutputFile != "" {
			fmt.Fprintf(w, "results written to %s\n", resp.OutputFile)
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List tracked detached runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, cleanup, err := openDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		recs, err := store.List()
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-38s %-10s %-4s %-21s %s\n", "JOB", "STATUS", "RC", "STARTED", "OUTPUT")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 90))
		for _, r := range recs {
			fmt.Fprintf(w, "%-38s %-10s %-4d %-21s %s\n",
				r.ID, r.Status, r.RC, r.StartedAt.Format("2006-01-02 15:04:05"), r.OutputPath)
		}
		return nil
	},
}

func init() {
	pollCmd.Flags().Bool("json", false, "Emit the full response as JSON")
}
