// Package cmdutil provides shared flags and flag accessors for aliasmap commands.
package cmdutil

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/pkg/catalogs"
)

// QueryFlags holds the catalog filter flags shared by read commands.
type QueryFlags struct {
	Query     string
	Namespace string
	Limit     int
	Force     bool
}

// AddQueryFlags adds catalog filter flags to a command.
func AddQueryFlags(cmd *cobra.Command) *QueryFlags {
	flags := &QueryFlags{}

	cmd.Flags().StringVarP(&flags.Query, "query", "q", "",
		"Free-text terms; every term must match")
	cmd.Flags().StringVarP(&flags.Namespace, "namespace", "n", "",
		"Exact provider namespace, e.g. Microsoft.Storage")
	cmd.Flags().IntVarP(&flags.Limit, "limit", "l", 0,
		"Limit number of results (0 for all)")
	cmd.Flags().BoolVar(&flags.Force, "force", false,
		"Rebuild the catalog before answering")

	return flags
}

// CatalogQuery converts the flags into a catalog query.
func (f *QueryFlags) CatalogQuery() catalogs.Query {
	return catalogs.Query{Text: f.Query, Namespace: f.Namespace}
}

// Apply truncates aliases to the configured limit.
func (f *QueryFlags) Apply(aliases []catalogs.Alias) []catalogs.Alias {
	if f.Limit > 0 && len(aliases) > f.Limit {
		return aliases[:f.Limit]
	}
	return aliases
}

// MustGetInt retrieves an integer flag value or panics if the flag doesn't exist.
// This should only be used for flags the calling package defines.
func MustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetString retrieves a string flag value or panics if the flag doesn't exist.
func MustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
func MustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetStringSlice retrieves a string slice flag value or panics if the flag doesn't exist.
func MustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetDuration retrieves a duration flag value or panics if the flag doesn't exist.
func MustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}
