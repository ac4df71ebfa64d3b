package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Auth.Enabled)
	assert.False(t, cfg.Delivery.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 50.0, cfg.Ingest.RateLimitPerSec)
	assert.Equal(t, 15*time.Second, cfg.SLA.RefreshInterval)
	assert.Equal(t, 3, cfg.Delivery.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Delivery.Retry.MaxBackoff)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9000"
log:
  level: debug
delivery:
  enabled: true
  targets:
    ciso:
      method: email
      to: ciso@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	// File overrides merge on top of defaults
	assert.Equal(t, "9090", cfg.Server.MetricsPort)

	require.Contains(t, cfg.Delivery.Targets, "ciso")
	assert.Equal(t, "email", cfg.Delivery.Targets["ciso"].Method)
	assert.Equal(t, "ciso@example.com", cfg.Delivery.Targets["ciso"].To)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("INCIDENTD_SERVER_PORT", "8081")
	t.Setenv("INCIDENTD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"database enabled without url",
			"database:\n  enabled: true\n",
		},
		{
			"auth enabled without credentials",
			"auth:\n  enabled: true\n",
		},
		{
			"delivery target with unknown method",
			"delivery:\n  enabled: true\n  targets:\n    ciso:\n      method: pigeon\n      to: x\n",
		},
		{
			"delivery target without destination",
			"delivery:\n  enabled: true\n  targets:\n    ciso:\n      method: email\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
