package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/runtimelog/config.yaml"

// EnvPrefix prefixes every environment override, e.g. RUNTIMELOG_STORAGE_BACKEND.
const EnvPrefix = "RUNTIMELOG_"

// Config holds all runtimelog configuration.
type Config struct {
	Retention RetentionConfig `yaml:"retention"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Timer     TimerConfig     `yaml:"timer"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type RetentionConfig struct {
	MaxAge     Duration `yaml:"max_age"`
	MaxEntries int      `yaml:"max_entries"`
}

type DedupConfig struct {
	WindowMillis int `yaml:"window_ms"`
}

type TimerConfig struct {
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
	PebbleDir  string `yaml:"pebble_dir"`
	Namespace  string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	Color bool   `yaml:"color"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Duration is a time.Duration that reads and writes Go duration strings in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DedupWindow returns the dedup window as a duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Dedup.WindowMillis) * time.Millisecond
}

// TickInterval returns the timer tick interval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Timer.TickIntervalSeconds) * time.Second
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "pebble", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q (use sqlite, pebble, or memory)", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" {
		switch c.Storage.Driver {
		case "sqlite3", "sqlite":
		default:
			return fmt.Errorf("unknown sqlite driver %q (use sqlite3 or sqlite)", c.Storage.Driver)
		}
	}
	if c.Retention.MaxEntries <= 0 {
		return fmt.Errorf("retention.max_entries must be positive, got %d", c.Retention.MaxEntries)
	}
	if c.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention.max_age must be positive")
	}
	if c.Dedup.WindowMillis <= 0 {
		return fmt.Errorf("dedup.window_ms must be positive, got %d", c.Dedup.WindowMillis)
	}
	if c.Timer.TickIntervalSeconds <= 0 {
		return fmt.Errorf("timer.tick_interval_seconds must be positive, got %d", c.Timer.TickIntervalSeconds)
	}
	return nil
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// ExpandPath is expandPath for callers outside the package.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// Resolve loads the config file (creating defaults when missing), applies a
// .env file from the working directory if one exists, then RUNTIMELOG_*
// environment overrides, and validates the result.
func Resolve(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg, err = LoadOrCreate()
	} else {
		cfg, err = LoadOrCreateAt(path)
	}
	if err != nil {
		return nil, err
	}

	_ = godotenv.Load(".env")

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from environment variables looked up
// through lookup (os.LookupEnv in production).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("STORAGE_NAMESPACE", &cfg.Storage.Namespace)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FILE", &cfg.Logging.File)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	if err := num("RETENTION_MAX_ENTRIES", &cfg.Retention.MaxEntries); err != nil {
		return err
	}
	if err := num("DEDUP_WINDOW_MS", &cfg.Dedup.WindowMillis); err != nil {
		return err
	}
	if err := num("TICK_INTERVAL_SECONDS", &cfg.Timer.TickIntervalSeconds); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "RETENTION_MAX_AGE"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sRETENTION_MAX_AGE: %w", EnvPrefix, err)
		}
		cfg.Retention.MaxAge = Duration(d)
	}
	if v, ok := lookup(EnvPrefix + "LOG_COLOR"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sLOG_COLOR: %w", EnvPrefix, err)
		}
		cfg.Logging.Color = b
	}
	return nil
}
