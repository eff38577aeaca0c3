package storage

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (CGO)
	_ "modernc.org/sqlite"          // registers "sqlite" (CGO-free)
)

// SQLiteBackend implements Backend on a single kv table.
type SQLiteBackend struct {
	db   *sql.DB
	path string

	// Prepared statements
	getValue *sql.Stmt
	setValue *sql.Stmt
	delValue *sql.Stmt
	listKeys *sql.Stmt
}

// OpenSQLite opens the database file at path with the named driver
// ("sqlite3" or "sqlite"), runs migrations and returns a ready backend.
// The backend owns the *sql.DB and closes it in Close.
func OpenSQLite(driver, path string) (*SQLiteBackend, error) {
	db, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes
	// writers the way a single browser tab would.
	db.SetMaxOpenConns(1)

	runner := NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	b, err := NewSQLiteBackend(db, path)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func dsn(driver, path string) string {
	switch driver {
	case "sqlite":
		return path + "?_pragma=busy_timeout(5000)"
	default:
		return path + "?_busy_timeout=5000"
	}
}

// NewSQLiteBackend creates a backend from an already-opened and migrated database.
func NewSQLiteBackend(db *sql.DB, path string) (*SQLiteBackend, error) {
	b := &SQLiteBackend{db: db, path: path}
	if err := b.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) prepareStatements() error {
	var err error

	b.getValue, err = b.db.Prepare(`SELECT value FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	b.setValue, err = b.db.Prepare(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	b.delValue, err = b.db.Prepare(`DELETE FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	// substr avoids LIKE escaping for page keys containing % or _.
	b.listKeys, err = b.db.Prepare(`
		SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key
	`)
	if err != nil {
		return err
	}

	return nil
}

func (b *SQLiteBackend) Get(key string) (string, bool, error) {
	var value string
	err := b.getValue.QueryRow(key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Set(key, value string) error {
	if _, err := b.setValue.Exec(key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Remove(key string) error {
	if _, err := b.delValue.Exec(key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Keys(prefix string) ([]string, error) {
	rows, err := b.listKeys.Query(prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SizeBytes returns the database file size in bytes. For in-memory
// databases it falls back to page_count * page_size.
func (b *SQLiteBackend) SizeBytes() int64 {
	if info, err := os.Stat(b.path); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := b.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := b.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// Close releases prepared statements and closes the database.
func (b *SQLiteBackend) Close() error {
	stmts := []*sql.Stmt{b.getValue, b.setValue, b.delValue, b.listKeys}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return b.db.Close()
}
