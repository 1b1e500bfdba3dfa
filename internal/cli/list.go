package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/risuops/risuctl/internal/diag"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate the diagnostic plugins the tool can run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		toolPath, _ := cmd.Flags().GetString("tool-path")
		filter, _ := cmd.Flags().GetString("filter")
		timeout, _ := cmd.Flags().GetInt("timeout")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, adapter, _, cleanup, err := openDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		opts := &diag.RequestOptions{
			Mode:           diag.ModeList,
			ToolPath:       firstNonEmpty(toolPath, cfg.Tool.Path),
			Filter:         filter,
			TimeoutSeconds: timeout,
			DryRun:         dryRun,
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

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-40s %-15s %s\n", "NAME", "CATEGORY", "DESCRIPTION")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))
		for _, p := range resp.Plugins {
			fmt.Fprintf(w, "%-40s %-15s %s\n", p.Name, p.Category, p.Description)
		}
		fmt.Fprintf(w, "\n%d plugins", resp.PluginCount)
		if len(resp.PluginsByCategory) > 0 {
			cats := make([]string, 0, len(resp.PluginsByCategory))
			for c := range resp.PluginsByCategory {
				cats = append(cats, c)
			}
			sort.Strings(cats)
			parts := make([]string, 0, len(cats))
			for _, c := range cats {
				parts = append(parts, fmt.Sprintf("%s=%d", c, resp.PluginsByCategory[c]))
			}
			fmt.Fprintf(w, " (%s)", strings.Join(parts, ", "))
		}
		fmt.Fprintln(w)
		return nil
	},
}

func init() {
	listCmd.Flags().String("tool-path", "", "Path to the risu executable")
	listCmd.Flags().String("filter", "", "Include filter passed to the tool")
	listCmd.Flags().Int("timeout", 0, "Timeout in seconds (default 60 for list)")
	listCmd.Flags().Bool("dry-run", false, "Report the intended invocation without executing")
	listCmd.Flags().Bool("json", false, "Emit the full response as JSON")
}
