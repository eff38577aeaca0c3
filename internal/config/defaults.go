package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Retention: RetentionConfig{
			MaxAge:     Duration(24 * time.Hour),
			MaxEntries: 5000,
		},
		Dedup: DedupConfig{
			WindowMillis: 3000,
		},
		Timer: TimerConfig{
			TickIntervalSeconds: 30,
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			Driver:     "sqlite3",
			Path:       "~/.config/runtimelog",
			SQLiteFile: "runtimelog.db",
			PebbleDir:  "pebble",
			Namespace:  "",
		},
		Logging: LoggingConfig{
			Level: "warn",
			File:  "",
			Color: true,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}
