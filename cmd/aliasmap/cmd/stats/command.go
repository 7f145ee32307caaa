// Package stats provides the cache statistics command.
package stats

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/cmd/cmdutil"
	"github.com/agentstation/aliasmap/internal/cmd/output"
)

// NewCommand creates the stats command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Long: `Show alias totals, the largest namespaces, and cache state.

Statistics describe the catalog held by this process, so --build is needed
to see anything on a cold start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			if cmdutil.MustGetBool(cmd, "build") {
				if _, err := client.Snapshot(cmd.Context(), false); err != nil {
					return err
				}
			}
			s := client.Stats()
			return output.Render(cmd.OutOrStdout(), output.Format(app.OutputFormat()), s,
				func(bool) output.Data { return output.StatsToTableData(s) })
		},
	}

	cmd.Flags().Bool("build", true, "Build the catalog first when none is cached")
	return cmd
}
