// Package namespaces provides the namespaces command.
package namespaces

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/cmd/cmdutil"
	"github.com/agentstation/aliasmap/internal/cmd/output"
)

// NewCommand creates the namespaces command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"ns"},
		Short:   "List provider namespaces in the catalog",
		Example: `  aliasmap namespaces
  aliasmap namespaces --with-counts -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			format := output.Format(app.OutputFormat())

			if cmdutil.MustGetBool(cmd, "with-counts") {
				summaries, err := client.NamespaceSummaries(cmd.Context())
				if err != nil {
					return err
				}
				return output.Render(cmd.OutOrStdout(), format, summaries,
					func(bool) output.Data { return output.NamespacesToTableData(summaries) })
			}

			names, err := client.Namespaces(cmd.Context())
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), format, names, func(bool) output.Data {
				rows := make([][]string, 0, len(names))
				for _, n := range names {
					rows = append(rows, []string{n})
				}
				return output.Data{Headers: []string{"Namespace"}, Rows: rows}
			})
		},
	}

	cmd.Flags().Bool("with-counts", false, "Include alias counts, largest namespace first")
	return cmd
}
