package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/internal/cmd/cmdutil"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// Execute runs the aliasmap CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "aliasmap",
		Short:   "Azure Policy alias catalog",
		Version: a.version,
		Long: `Aliasmap builds a searchable catalog of Azure Policy aliases.

It enumerates every resource provider registered in a subscription, fetches
their aliases concurrently under a request budget, and caches the result.
The catalog can be searched from the command line, exported as JSON or YAML,
or served over HTTP.

Credentials come from AZURE_ACCESS_TOKEN or, when that is unset, from
"az account get-access-token".`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.aliasmap.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().Bool("quiet", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("format", "o", "", "output format: table, json, yaml, wide")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/--quiet)")
	rootCmd.PersistentFlags().String("subscription", "", "subscription id (overrides SUBSCRIPTION_ID)")

	rootCmd.SetVersionTemplate("aliasmap {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	// These flags are defined as persistent flags in createRootCommand, so errors indicate programming errors
	if configFile := cmdutil.MustGetString(cmd, "config"); configFile != "" {
		config, err := LoadConfigFile(configFile)
		if err != nil {
			return errors.WrapResource("load", "config", configFile, err)
		}
		a.config = config
	}

	a.config.UpdateFromFlags(
		cmdutil.MustGetBool(cmd, "verbose"),
		cmdutil.MustGetBool(cmd, "quiet"),
		cmdutil.MustGetBool(cmd, "no-color"),
		cmdutil.MustGetString(cmd, "format"),
		cmdutil.MustGetString(cmd, "log-level"),
	)
	if sub := cmdutil.MustGetString(cmd, "subscription"); sub != "" {
		a.config.SubscriptionID = sub
	}

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
