package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 24*time.Hour, cfg.Retention.MaxAge.Std())
	assert.Equal(t, 5000, cfg.Retention.MaxEntries)
	assert.Equal(t, 3000, cfg.Dedup.WindowMillis)
	assert.Equal(t, 3*time.Second, cfg.DedupWindow())
	assert.Equal(t, 30, cfg.Timer.TickIntervalSeconds)
	assert.Equal(t, 30*time.Second, cfg.TickInterval())
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "~/.config/runtimelog", cfg.Storage.Path)
	assert.Equal(t, "runtimelog.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, "pebble", cfg.Storage.PebbleDir)
	assert.Empty(t, cfg.Storage.Namespace)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Color)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
retention:
  max_age: 2h
  max_entries: 100
dedup:
  window_ms: 500
storage:
  backend: "pebble"
logging:
  level: "debug"
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 2*time.Hour, cfg.Retention.MaxAge.Std())
	assert.Equal(t, 100, cfg.Retention.MaxEntries)
	assert.Equal(t, 500, cfg.Dedup.WindowMillis)
	assert.Equal(t, "pebble", cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Non-overridden values remain defaults
	assert.Equal(t, 30, cfg.Timer.TickIntervalSeconds)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "~/.config/runtimelog", cfg.Storage.Path)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0644)
	require.NoError(t, err)

	_, err = Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadInvalidDurationReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(cfgPath, []byte("retention:\n  max_age: forever\n"), 0644)
	require.NoError(t, err)

	_, err = Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load("/tmp/nonexistent_path_12345/config.yaml")
	assert.Error(t, err)
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)

	// Should return defaults
	assert.Equal(t, 5000, cfg.Retention.MaxEntries)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)

	// File should now exist on disk
	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	// File should be valid YAML loadable again, durations included
	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Retention.MaxAge, cfg2.Retention.MaxAge)
	assert.Equal(t, cfg.Retention.MaxEntries, cfg2.Retention.MaxEntries)
}

func TestLoadOrCreateLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(cfgPath, []byte("timer:\n  tick_interval_seconds: 5\n"), 0644)
	require.NoError(t, err)

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Timer.TickIntervalSeconds)
	// Other fields remain defaults
	assert.Equal(t, 3000, cfg.Dedup.WindowMillis)
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"RUNTIMELOG_STORAGE_BACKEND":       "memory",
		"RUNTIMELOG_RETENTION_MAX_ENTRIES": "10",
		"RUNTIMELOG_RETENTION_MAX_AGE":     "90m",
		"RUNTIMELOG_DEDUP_WINDOW_MS":       "1500",
		"RUNTIMELOG_LOG_COLOR":             "false",
		"RUNTIMELOG_METRICS_ADDR":          "127.0.0.1:9464",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg, lookup))

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 10, cfg.Retention.MaxEntries)
	assert.Equal(t, 90*time.Minute, cfg.Retention.MaxAge.Std())
	assert.Equal(t, 1500, cfg.Dedup.WindowMillis)
	assert.False(t, cfg.Logging.Color)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "RUNTIMELOG_RETENTION_MAX_ENTRIES" {
			return "lots", true
		}
		return "", false
	}
	assert.Error(t, ApplyEnv(DefaultConfig(), lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"pebble backend", func(c *Config) { c.Storage.Backend = "pebble" }, false},
		{"modernc driver", func(c *Config) { c.Storage.Driver = "sqlite" }, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, true},
		{"zero max entries", func(c *Config) { c.Retention.MaxEntries = 0 }, true},
		{"zero max age", func(c *Config) { c.Retention.MaxAge = 0 }, true},
		{"zero dedup window", func(c *Config) { c.Dedup.WindowMillis = 0 }, true},
		{"zero tick interval", func(c *Config) { c.Timer.TickIntervalSeconds = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveCreatesAndValidates(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	t.Setenv("RUNTIMELOG_STORAGE_BACKEND", "memory")

	cfg, err := Resolve(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}
