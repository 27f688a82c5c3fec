package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/engine"
	"github.com/NubleX/LEGION2/internal/export"
	"github.com/NubleX/LEGION2/internal/targets"
)

var (
	exportFormat string
	exportFile   string
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export [HOST_ID...]",
	Short: "Export hosts with their ports and findings",
	Long: `Write hosts, their ports and their findings as JSON, CSV or XML. Without
host ids the whole inventory is exported. Nothing is written when a named
host does not exist.`,
	Example: `  legion export --format csv --file hosts.csv
  legion export --format xml 9b1c... 77ad...`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatJSON), "json, csv or xml")
	exportCmd.Flags().StringVar(&exportFile, "file", "", "write to this file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		if exportFile == "" {
			return eng.ExportHosts(ctx, cmd.OutOrStdout(), format, args)
		}

		// Render fully before touching the file so a failed export leaves
		// nothing behind.
		var buf bytes.Buffer
		if err := eng.ExportHosts(ctx, &buf, format, args); err != nil {
			return err
		}
		path := exportPath(exportFile)
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
		return nil
	})
}

// exportPath keeps the directory as given and makes the file name portable.
func exportPath(file string) string {
	return filepath.Join(filepath.Dir(file), targets.SanitizeFilename(filepath.Base(file)))
}
