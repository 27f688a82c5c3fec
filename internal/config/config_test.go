package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/tools"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, db.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Scanning.WorkerPoolSize)
	assert.Equal(t, 5*time.Second, cfg.Scanning.GracePeriod)
	assert.Equal(t, 2*time.Hour, cfg.Scanning.Timeouts[tools.ScanNmapComprehensive])
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAPIAddress())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(t *testing.T, cfg *Config)
		code    errors.ErrorCode
	}{
		{
			name: "yaml overrides defaults",
			file: "legion.yaml",
			content: `
database:
  driver: postgres
  host: db.internal
  port: 5432
  database: legion
  username: legion
scanning:
  worker_pool_size: 4
  grace_period: 2s
  timeouts:
    nikto: 45m
  retry:
    max_retries: 1
    base_delay: 1s
  tools:
    nmap: /usr/local/bin/nmap
  unprivileged: true
events:
  buffer_size: 64
logging:
  level: debug
  format: json
schedules:
  - name: nightly-dmz
    cron: "0 2 * * *"
    cidr: 10.0.0.0/24
    excludes: [10.0.0.1]
    scan_type: nmap-quick
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, db.DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, "db.internal", cfg.Database.Host)
				assert.Equal(t, 4, cfg.Scanning.WorkerPoolSize)
				assert.Equal(t, 2*time.Second, cfg.Scanning.GracePeriod)
				assert.Equal(t, 45*time.Minute, cfg.Scanning.Timeouts["nikto"])
				assert.Equal(t, "/usr/local/bin/nmap", cfg.Scanning.Tools.Nmap)
				assert.True(t, cfg.Scanning.Unprivileged)
				assert.Equal(t, 64, cfg.Events.BufferSize)
				require.Len(t, cfg.Schedules, 1)
				assert.Equal(t, "10.0.0.0/24", cfg.Schedules[0].CIDR)

				sc := cfg.SchedulerConfig()
				assert.Equal(t, 4, sc.WorkerPoolSize)
				assert.Equal(t, 1, sc.Retry.MaxRetries)
				assert.Equal(t, time.Second, sc.Retry.BaseDelay)
				assert.True(t, cfg.ToolsConfig().Unprivileged)
				assert.Equal(t, 64, cfg.EventsBusConfig().BufferSize)
			},
		},
		{
			name:    "json parses as yaml",
			file:    "legion.json",
			content: `{"scanning": {"worker_pool_size": 3}, "api": {"port": 9090}}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.Scanning.WorkerPoolSize)
				assert.Equal(t, 9090, cfg.API.Port)
			},
		},
		{
			name:    "invalid yaml syntax",
			file:    "broken.yaml",
			content: "scanning: [worker_pool_size",
			code:    errors.CodeConfiguration,
		},
		{
			name:    "invalid worker pool",
			file:    "pool.yaml",
			content: "scanning:\n  worker_pool_size: 0\n",
			code:    errors.CodeValidation,
		},
		{
			name:    "invalid cron",
			file:    "cron.yaml",
			content: "schedules:\n  - name: bad\n    cron: \"every day\"\n    target: 10.0.0.5\n    scan_type: nmap\n",
			code:    errors.CodeValidation,
		},
		{
			name:    "schedule with target and cidr",
			file:    "both.yaml",
			content: "schedules:\n  - name: both\n    cron: \"@hourly\"\n    target: 10.0.0.5\n    cidr: 10.0.0.0/24\n    scan_type: nmap\n",
			code:    errors.CodeValidation,
		},
		{
			name:    "schedule without selector",
			file:    "none.yaml",
			content: "schedules:\n  - name: none\n    cron: \"@hourly\"\n    scan_type: nmap\n",
			code:    errors.CodeValidation,
		},
		{
			name:    "tag schedule",
			file:    "tag.yaml",
			content: "schedules:\n  - name: web-rescan\n    cron: \"@daily\"\n    tag: web\n    scan_type: nikto\n",
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Schedules, 1)
				assert.Equal(t, "web", cfg.Schedules[0].Tag)
			},
		},
		{
			name:    "auth without keys",
			file:    "auth.yaml",
			content: "api:\n  auth_enabled: true\n",
			code:    errors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.content))
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestReadSkipsValidation(t *testing.T) {
	path := writeConfig(t, "invalid.yaml", "scanning:\n  worker_pool_size: 0\n")

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Scanning.WorkerPoolSize)
	assert.Error(t, cfg.Validate())

	_, err = Load(path)
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	cfg := Default()
	cfg.Scanning.WorkerPoolSize = 6
	cfg.Scanning.Retry.MaxDelay = 90 * time.Second
	cfg.API.APIKeyHashes = []string{"$2a$10$abcdefghijklmnopqrstuv"}

	path := filepath.Join(t.TempDir(), "nested", "legion.yaml")
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Scanning.WorkerPoolSize)
	assert.Equal(t, 90*time.Second, loaded.Scanning.Retry.MaxDelay)
	assert.Equal(t, cfg.API.APIKeyHashes, loaded.API.APIKeyHashes)
}
