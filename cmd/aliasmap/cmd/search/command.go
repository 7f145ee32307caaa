// Package search provides the alias search command.
package search

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/cmd/cmdutil"
	"github.com/agentstation/aliasmap/internal/cmd/output"
)

// NewCommand creates the search command.
func NewCommand(app application.Application) *cobra.Command {
	var flags *cmdutil.QueryFlags

	cmd := &cobra.Command{
		Use:     "search [terms...]",
		Aliases: []string{"aliases", "ls"},
		Short:   "Search policy aliases",
		Long: `Search the alias catalog by free text and namespace.

Every whitespace-separated term must appear, case-insensitively, in the
alias namespace, resource type, name, or default path. The catalog is
built on first use and reused until its TTL expires.`,
		Example: `  aliasmap search storage sku
  aliasmap search --namespace Microsoft.Network
  aliasmap search -q "tls version" -n Microsoft.Web -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				if flags.Query != "" {
					args = append([]string{flags.Query}, args...)
				}
				flags.Query = strings.Join(args, " ")
			}
			return run(cmd, app, flags)
		},
	}

	flags = cmdutil.AddQueryFlags(cmd)
	return cmd
}

func run(cmd *cobra.Command, app application.Application, flags *cmdutil.QueryFlags) error {
	client, err := app.Client()
	if err != nil {
		return err
	}

	aliases, err := client.Query(cmd.Context(), flags.CatalogQuery(), flags.Force)
	if err != nil {
		return err
	}
	aliases = flags.Apply(aliases)

	app.Logger().Debug().
		Str("query", flags.Query).
		Str("namespace", flags.Namespace).
		Int("count", len(aliases)).
		Msg("Search complete")

	return output.Render(cmd.OutOrStdout(), output.Format(app.OutputFormat()), aliases,
		func(wide bool) output.Data { return output.AliasesToTableData(aliases, wide) })
}
