package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
supplier:
  api_key: secret
  api_url: https://api.supplier.test
  feed_url: https://feeds.supplier.test
  api_rate_limit: 30
  feed_encoding: windows-1251
scheduler:
  full_sync_at: "03:30"
  incremental_hours: 4
postgres:
  host: db
  port: "5432"
  user: app
  password: pw
  dbname: catalog
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Supplier.ApiKey)
	assert.Equal(t, 30, cfg.Supplier.ApiRateLimit)
	assert.Equal(t, "windows-1251", cfg.Supplier.FeedEncoding)
	assert.Equal(t, "03:30", cfg.Scheduler.FullSyncAt)
	assert.Equal(t, 4, cfg.Scheduler.IncrementalHours)

	// Unset values fall back to defaults.
	assert.Equal(t, 5, cfg.Scheduler.QueueIntervalMinutes)
	assert.Equal(t, 25, cfg.Scheduler.QueueDrainLimit)
	assert.Equal(t, 15, cfg.Scheduler.RetryDelayMinutes)
	assert.Equal(t, 48, cfg.Scheduler.FullSyncCeilingHours)
	assert.Equal(t, ":9090", cfg.MetricsAddr)

	assert.Contains(t, cfg.Postgres.GetConnectionString(), "host=db")
	assert.Contains(t, cfg.Postgres.GetConnectionString(), "dbname=catalog")
}

func TestLoadConfigDefaultsOnEmptySections(t *testing.T) {
	path := writeConfig(t, "supplier:\n  api_url: https://api.supplier.test\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Supplier.ApiRateLimit)
	assert.Equal(t, "02:00", cfg.Scheduler.FullSyncAt)
	assert.Equal(t, 6, cfg.Scheduler.IncrementalHours)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	require.Error(t, err)
}
