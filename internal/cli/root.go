package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "risuctl",
	Short: "Adapter between automation frameworks and RISU diagnostics",
	Long: `risuctl runs the RISU diagnostic framework on a managed host and returns
structured, machine-consumable results.

Three operations: validate (tool present and runnable), list (enumerate
plugins), run (execute diagnostics, sync or detached). Detached runs are
tracked in a durable job registry under ~/.risuctl/ and retrieved with poll.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: risuctl.yaml, ~/.risuctl/config.yaml, /etc/risuctl/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(jobWorkerCmd)
}
