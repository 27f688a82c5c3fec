package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/api/handlers"
	"github.com/NubleX/LEGION2/internal/daemon"
	"github.com/NubleX/LEGION2/internal/logging"
)

const stopPollInterval = 200 * time.Millisecond

var (
	servePort    int
	servePIDFile string
	serveNoAPI   bool
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan engine, schedules and HTTP API",
	Long: `Run LEGION in the foreground as a service: the scan engine, the recurring
schedules from the configuration and the HTTP API. SIGTERM and SIGINT shut it
down gracefully, SIGHUP reloads schedules and the log level, SIGUSR1 logs a
status report and SIGUSR2 toggles debug logging.`,
	Example: `  legion serve
  legion serve --port 9090 --pid-file /run/legion.pid`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a server is running",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "API port (overrides api.port)")
	serveCmd.Flags().BoolVar(&serveNoAPI, "no-api", false, "do not start the HTTP API")
	for _, cmd := range []*cobra.Command{serveCmd, stopCmd, statusCmd} {
		cmd.Flags().StringVar(&servePIDFile, "pid-file", "", "PID file (overrides daemon.pid_file)")
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if servePIDFile != "" {
		cfg.Daemon.PIDFile = servePIDFile
	}
	if serveNoAPI {
		cfg.API.Enabled = false
	}

	d := daemon.New(cfg, daemon.Options{
		ConfigPath: getConfigFilePath(),
		Logger:     logging.Default(),
		Build: handlers.BuildInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
		},
	})
	return d.Start()
}

// pidFilePath resolves the PID file of the server this CLI talks to.
func pidFilePath() (string, error) {
	if servePIDFile != "" {
		return servePIDFile, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Daemon.PIDFile == "" {
		return "", fmt.Errorf("no PID file configured; set daemon.pid_file or pass --pid-file")
	}
	return cfg.Daemon.PIDFile, nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	path, err := pidFilePath()
	if err != nil {
		return err
	}
	pid, err := daemon.ReadPIDFile(path)
	if err != nil || !daemon.IsProcessRunning(pid) {
		fmt.Fprintln(cmd.OutOrStdout(), "Server is not running")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Server is running (PID %d)\n", pid)
	return nil
}

func runStop(cmd *cobra.Command, _ []string) error {
	path, err := pidFilePath()
	if err != nil {
		return err
	}
	pid, err := daemon.ReadPIDFile(path)
	if err != nil || !daemon.IsProcessRunning(pid) {
		return fmt.Errorf("server is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal PID %d: %w", pid, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to PID %d\n", pid)

	ctx := commandContext(cmd)
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for daemon.IsProcessRunning(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	return nil
}
