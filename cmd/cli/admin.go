package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/auth"
	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/engine"
)

var configInitForce bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.ConnectAndMigrate(commandContext(cmd), &cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()
		fmt.Fprintf(cmd.OutOrStdout(), "Database schema is up to date (%s)\n", cfg.Database.Driver)
		return nil
	},
}

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apiKeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an API key and the hash to configure",
	Long: `Generate a random API key. The key is printed once; put the hash under
api.api_key_hashes and enable api.auth_enabled to require it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if outputFormat == outputJSON {
			return printJSON(w, key)
		}
		fmt.Fprintf(w, "API key: %s\n", key.Key)
		fmt.Fprintf(w, "Hash:    %s\n", key.Hash)
		fmt.Fprintln(w, "\nStore the key now; it cannot be recovered from the hash.")
		return nil
	},
}

var apiKeyHashCmd = &cobra.Command{
	Use:   "hash KEY",
	Short: "Hash an existing API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !auth.IsValidAPIKeyFormat(args[0]) {
			return fmt.Errorf("not a LEGION API key")
		}
		hash, err := auth.HashAPIKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and check configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a configuration file with the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%d schedules)\n", len(cfg.Schedules))
		return nil
	},
}

var scanTypesCmd = &cobra.Command{
	Use:   "scan-types",
	Short: "List the scan types this build can run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(_ context.Context, _ *config.Config, eng *engine.Engine) error {
			types := eng.ScanTypes()
			if outputFormat == outputJSON {
				return printJSON(cmd.OutOrStdout(), types)
			}
			for _, t := range types {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if outputFormat == outputJSON {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"version":    version,
				"commit":     commit,
				"build_time": buildTime,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "legion %s\n", getVersion())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, apiKeyCmd, configCmd, scanTypesCmd, versionCmd)
	apiKeyCmd.AddCommand(apiKeyGenerateCmd, apiKeyHashCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd)
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}
