package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/risuops/risuctl/internal/diag"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Confirm the diagnostic tool is installed and runnable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		toolPath, _ := cmd.Flags().GetString("tool-path")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, adapter, _, cleanup, err := openDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		opts := &diag.RequestOptions{
			Mode:     diag.ModeValidate,
			ToolPath: firstNonEmpty(toolPath, cfg.Tool.Path),
			DryRun:   dryRun,
		}
		resp := adapter.Execute(cmd.Context(), opts)

		if asJSON {
			return printJSON(cmd, resp)
		}
		if resp.Failed {
			return respError(cmd, resp)
		}
		if resp.DryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "DRY RUN: would execute %v\n", resp.Cmd)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Msg)
		return nil
	},
}

func init() {
	validateCmd.Flags().String("tool-path", "", "Path to the risu executable")
	validateCmd.Flags().Bool("dry-run", false, "Report the intended invocation without executing")
	validateCmd.Flags().Bool("json", false, "Emit the full response as JSON")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printJSON(cmd *cobra.Command, resp *diag.Response) error {
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

// respError surfaces a structured failure as a CLI error without
// re-printing the whole response.
func respError(cmd *cobra.Command, resp *diag.Response) error {
	cmd.SilenceUsage = true
	if resp.Error != nil {
		if resp.Error.Path != "" {
			return fmt.Errorf("%s: %s (%s)", resp.Error.Kind, resp.Error.Msg, resp.Error.Path)
		}
		return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Msg)
	}
	return errors.New(resp.Msg)
}
