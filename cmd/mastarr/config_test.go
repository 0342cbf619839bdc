package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8484, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/mastarr.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "./blueprints", cfg.Blueprints.Dir)
	assert.Equal(t, 60*time.Second, cfg.Hooks.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.StopTimeout)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.ReadinessInterval)
	assert.Equal(t, 15, cfg.Orchestrator.ReadinessAttempts)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  read_timeout: 60s
  shutdown_timeout: 15s

database:
  dsn: "/tmp/test.db"

blueprints:
  dir: "/etc/mastarr/blueprints"

orchestrator:
  readiness_attempts: 30

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "/etc/mastarr/blueprints", cfg.Blueprints.Dir)
	assert.Equal(t, 30, cfg.Orchestrator.ReadinessAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("MASTARR_SERVER_HOST", "192.168.1.1")
	t.Setenv("MASTARR_SERVER_PORT", "3000")
	t.Setenv("MASTARR_DATABASE_DSN", "/custom/path.db")
	t.Setenv("MASTARR_LOG_LEVEL", "warn")
	t.Setenv("MASTARR_BLUEPRINTS_DIR", "/srv/blueprints")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/srv/blueprints", cfg.Blueprints.Dir)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err) // Should not error, just use defaults

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8484, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		cfg := &Config{Log: LogConfig{Level: level, Format: "json"}}
		assert.NotNil(t, SetupLogger(cfg))
	}
}

func TestSetupLogger_TextFormat(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "info", Format: "text"}}
	assert.NotNil(t, SetupLogger(cfg))
}

// =============================================================================
// Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"MASTARR_SERVER_HOST",
		"MASTARR_SERVER_PORT",
		"MASTARR_DATABASE_DSN",
		"MASTARR_LOG_LEVEL",
		"MASTARR_LOG_FORMAT",
		"MASTARR_BLUEPRINTS_DIR",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
