package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/cmd/aliasmap/cmd/export"
	"github.com/agentstation/aliasmap/cmd/aliasmap/cmd/fetch"
	"github.com/agentstation/aliasmap/cmd/aliasmap/cmd/namespaces"
	"github.com/agentstation/aliasmap/cmd/aliasmap/cmd/search"
	"github.com/agentstation/aliasmap/cmd/aliasmap/cmd/serve"
	"github.com/agentstation/aliasmap/cmd/aliasmap/cmd/stats"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(withGroup("core", search.NewCommand(a)))
	rootCmd.AddCommand(withGroup("core", namespaces.NewCommand(a)))
	rootCmd.AddCommand(withGroup("core", serve.NewCommand(a)))

	// Management commands
	rootCmd.AddCommand(withGroup("management", fetch.NewCommand(a)))
	rootCmd.AddCommand(withGroup("management", stats.NewCommand(a)))
	rootCmd.AddCommand(withGroup("management", export.NewCommand(a)))

	rootCmd.AddCommand(a.newVersionCommand())
}

func withGroup(id string, cmd *cobra.Command) *cobra.Command {
	cmd.GroupID = id
	return cmd
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("aliasmap %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
