// Package fetch provides the command that rebuilds the catalog from the management API.
package fetch

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap"
	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/cmd/emoji"
	"github.com/agentstation/aliasmap/internal/cmd/output"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/constants"
)

// Result summarizes one rebuild.
type Result struct {
	Statistics catalogs.Statistics     `json:"statistics" yaml:"statistics"`
	Providers  catalogs.ProviderReport `json:"providers" yaml:"providers"`
	BuiltAt    time.Time               `json:"built_at" yaml:"built_at"`
	DurationMS int64                   `json:"duration_ms" yaml:"duration_ms"`
}

// NewCommand creates the fetch command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "fetch",
		Aliases: []string{"refresh", "build"},
		Short:   "Rebuild the alias catalog from the management API",
		Long: `Fetch enumerates every registered resource provider and downloads its
aliases, then prints a summary of the resulting catalog.

Providers that fail after retries are left out and listed in the summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			start := time.Now()
			snap, err := client.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			result := Result{
				Statistics: snap.Statistics(),
				Providers:  snap.Providers(),
				BuiltAt:    snap.BuiltAt(),
				DurationMS: time.Since(start).Milliseconds(),
			}

			format := output.Format(app.OutputFormat())
			if !format.IsTable() {
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), result)
			}
			printSummary(cmd, result, client.Stats())
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, r Result, stats aliasmap.Stats) {
	w := cmd.OutOrStdout()
	p := r.Providers

	symbol := emoji.Success
	if !p.Complete() {
		symbol = emoji.Warning
	}
	fmt.Fprintf(w, "%s Built %d aliases across %d namespaces in %s\n",
		symbol, r.Statistics.TotalAliases, r.Statistics.TotalNamespaces,
		(time.Duration(r.DurationMS) * time.Millisecond).Round(time.Millisecond))
	fmt.Fprintf(w, "  providers: %d of %d succeeded\n", p.Succeeded, p.Total)

	if len(p.Failed) > 0 {
		sample := p.Failed
		if len(sample) > constants.FailureSampleSize {
			sample = sample[:constants.FailureSampleSize]
		}
		more := ""
		if extra := len(p.Failed) - len(sample); extra > 0 {
			more = fmt.Sprintf(" (+%d more)", extra)
		}
		fmt.Fprintf(w, "  failed:    %s%s\n", strings.Join(sample, ", "), more)
	}
	if stats.LastError != "" {
		fmt.Fprintf(w, "%s Rebuild failed, previous catalog kept: %s\n", emoji.Error, stats.LastError)
	}
}
