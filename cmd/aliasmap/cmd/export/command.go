// Package export provides the catalog export command.
package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/cmd/cmdutil"
	"github.com/agentstation/aliasmap/internal/cmd/emoji"
	"github.com/agentstation/aliasmap/internal/cmd/output"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// Document is the exported catalog.
type Document struct {
	BuiltAt    time.Time               `json:"built_at" yaml:"built_at"`
	Statistics catalogs.Statistics     `json:"statistics" yaml:"statistics"`
	Providers  catalogs.ProviderReport `json:"providers" yaml:"providers"`
	Aliases    []catalogs.Alias        `json:"aliases" yaml:"aliases"`
}

// NewCommand creates the export command.
func NewCommand(app application.Application) *cobra.Command {
	var flags *cmdutil.QueryFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the alias catalog as JSON or YAML",
		Example: `  aliasmap export > aliases.json
  aliasmap export -o yaml --file aliases.yaml
  aliasmap export --namespace Microsoft.Storage --file storage.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	flags = cmdutil.AddQueryFlags(cmd)
	cmd.Flags().StringP("file", "f", "", "Write to this file instead of stdout")
	return cmd
}

func run(cmd *cobra.Command, app application.Application, flags *cmdutil.QueryFlags) error {
	format := output.Format(app.OutputFormat())
	if format.IsTable() {
		format = output.FormatJSON
	}

	client, err := app.Client()
	if err != nil {
		return err
	}
	snap, err := client.Snapshot(cmd.Context(), flags.Force)
	if err != nil {
		return err
	}

	doc := Document{
		BuiltAt:    snap.BuiltAt(),
		Statistics: snap.Statistics(),
		Providers:  snap.Providers(),
		Aliases:    flags.Apply(snap.Query(flags.CatalogQuery())),
	}

	var buf bytes.Buffer
	if err := output.NewFormatter(format).Format(&buf, doc); err != nil {
		return err
	}

	path := cmdutil.MustGetString(cmd, "file")
	if path == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}

	if err := writeFile(path, buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported %d aliases to %s\n", emoji.Success, len(doc.Aliases), path)
	return nil
}

// writeFile replaces path atomically so readers never see a partial export.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapResource("create", "directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WrapResource("create", "file", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WrapResource("write", "file", path, err)
	}
	if err := tmp.Chmod(constants.FilePermissions); err != nil {
		_ = tmp.Close()
		return errors.WrapResource("chmod", "file", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapResource("close", "file", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapResource("rename", "file", path, err)
	}
	return nil
}
