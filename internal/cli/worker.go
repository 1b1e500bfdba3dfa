package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// jobWorkerCmd is the detached side of an async run. It is launched by
// the adapter re-invoking this binary and is not for interactive use.
var jobWorkerCmd = &cobra.Command{
	Use:    "job-worker",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, _ := cmd.Flags().GetString("job-id")
		spoolDir, _ := cmd.Flags().GetString("spool-dir")
		if jobID == "" || spoolDir == "" {
			return fmt.Errorf("job-worker requires --job-id and --spool-dir")
		}

		_, adapter, _, cleanup, err := openDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		return adapter.RunWorker(cmd.Context(), jobID, spoolDir)
	},
}

func init() {
	jobWorkerCmd.Flags().String("job-id", "", "Job id to execute")
	jobWorkerCmd.Flags().String("spool-dir", "", "Spool directory holding the job request")
}
