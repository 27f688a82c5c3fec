// Package cli provides the command-line interface of LEGION. It implements
// the Cobra command tree for running the service, submitting scans and
// working with the host inventory.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/logging"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "legion",
	Short: "Network reconnaissance job engine",
	Long: `LEGION runs reconnaissance tools (nmap, masscan, nikto, dirb and host
discovery) as supervised jobs, merges their findings into a host inventory,
and exposes the inventory through this CLI and an HTTP API.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		switch outputFormat {
		case outputTable, outputJSON:
			return nil
		default:
			return fmt.Errorf("invalid output format %q (table, json)", outputFormat)
		}
	},
}

// Execute adds all child commands to the root command and runs it. Ctrl-C
// cancels the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ~/.legion/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&outputFormat, "output", "o", outputTable, "output format: table, json")
	flags.String("database", "", "SQLite database path (overrides database.path)")

	for key, flag := range map[string]string{
		"verbose":       "verbose",
		"database.path": "database",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".legion"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// LEGION_DATABASE_PATH overrides database.path, and so on.
	viper.SetEnvPrefix("LEGION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// envOverrides are the settings that environment variables and flags may
// override on top of the configuration file.
var envOverrides = []struct {
	key   string
	apply func(*config.Config)
}{
	{"database.driver", func(c *config.Config) { c.Database.Driver = viper.GetString("database.driver") }},
	{"database.path", func(c *config.Config) { c.Database.Path = viper.GetString("database.path") }},
	{"database.host", func(c *config.Config) { c.Database.Host = viper.GetString("database.host") }},
	{"database.port", func(c *config.Config) { c.Database.Port = viper.GetInt("database.port") }},
	{"database.database", func(c *config.Config) { c.Database.Database = viper.GetString("database.database") }},
	{"database.username", func(c *config.Config) { c.Database.Username = viper.GetString("database.username") }},
	{"database.password", func(c *config.Config) { c.Database.Password = viper.GetString("database.password") }},
	{"api.listen_addr", func(c *config.Config) { c.API.ListenAddr = viper.GetString("api.listen_addr") }},
	{"api.port", func(c *config.Config) { c.API.Port = viper.GetInt("api.port") }},
	{"logging.level", func(c *config.Config) { c.Logging.Level = logging.LogLevel(viper.GetString("logging.level")) }},
	{"logging.format", func(c *config.Config) { c.Logging.Format = logging.LogFormat(viper.GetString("logging.format")) }},
	{"scanning.worker_pool_size", func(c *config.Config) {
		c.Scanning.WorkerPoolSize = viper.GetInt("scanning.worker_pool_size")
	}},
	{"scanning.unprivileged", func(c *config.Config) { c.Scanning.Unprivileged = viper.GetBool("scanning.unprivileged") }},
}

// getConfigFilePath returns the config file in use, or "" for defaults.
func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return viper.ConfigFileUsed()
}

// loadConfig loads the configuration file and applies environment and flag
// overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Read(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	for _, o := range envOverrides {
		if viper.IsSet(o.key) {
			o.apply(cfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}
	logConfig.AddSource = logConfig.Level == logging.LevelDebug

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Debug("Structured logging initialized", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	}
}

// commandContext returns the command's context, which Execute ties to Ctrl-C.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
