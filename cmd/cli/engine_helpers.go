package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/engine"
	"github.com/NubleX/LEGION2/internal/logging"
)

const engineCloseTimeout = 30 * time.Second

// EngineOperation is a command body that works on an open engine.
type EngineOperation func(ctx context.Context, cfg *config.Config, eng *engine.Engine) error

// engineDependencies lets tests swap the tool set or launcher.
var engineDependencies = func() engine.Dependencies {
	return engine.Dependencies{Logger: logging.Default()}
}

// withEngine runs op against an engine over the configured database. The
// engine is built without recovering interrupted scans, so it is safe to
// use while a server owns the same database.
func withEngine(cmd *cobra.Command, op EngineOperation) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	database, err := db.ConnectAndMigrate(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	eng := engine.New(db.NewStore(database), cfg, engineDependencies())
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), engineCloseTimeout)
		defer cancel()
		if closeErr := eng.Close(closeCtx); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to stop engine: %v\n", closeErr)
		}
	}()

	return op(ctx, cfg, eng)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...any) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(header...)
	return table
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
