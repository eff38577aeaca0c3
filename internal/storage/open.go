package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/config"
)

// Open builds the backend named by cfg.Backend. File-backed backends are
// created under cfg.Path.
func Open(cfg config.StorageConfig, log *zap.Logger) (Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch cfg.Backend {
	case "memory":
		return NewMemoryBackend(), nil
	case "sqlite", "pebble":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	dir, err := config.ExpandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expand storage path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	if cfg.Backend == "pebble" {
		p := filepath.Join(dir, cfg.PebbleDir)
		log.Debug("opening pebble backend", zap.String("dir", p))
		return OpenPebble(p)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}
	p := filepath.Join(dir, cfg.SQLiteFile)
	log.Debug("opening sqlite backend", zap.String("path", p), zap.String("driver", driver))
	return OpenSQLite(driver, p)
}
