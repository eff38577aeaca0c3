package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleBackend implements Backend on a Pebble LSM store.
type PebbleBackend struct {
	db  *pebble.DB
	dir string
}

// OpenPebble opens (or creates) a Pebble database in dir.
func OpenPebble(dir string) (*PebbleBackend, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	return &PebbleBackend{db: db, dir: dir}, nil
}

func (b *PebbleBackend) Get(key string) (string, bool, error) {
	if b.db == nil {
		return "", false, ErrClosed
	}
	v, closer, err := b.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	value := string(v)
	if closer != nil {
		closer.Close()
	}
	return value, true, nil
}

func (b *PebbleBackend) Set(key, value string) error {
	if b.db == nil {
		return ErrClosed
	}
	if err := b.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (b *PebbleBackend) Remove(key string) error {
	if b.db == nil {
		return ErrClosed
	}
	if err := b.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func (b *PebbleBackend) Keys(prefix string) ([]string, error) {
	if b.db == nil {
		return nil, ErrClosed
	}
	iter, err := b.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	pfx := []byte(prefix)
	var keys []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

// SizeBytes reports Pebble's total disk usage.
func (b *PebbleBackend) SizeBytes() int64 {
	if b.db == nil {
		return 0
	}
	return int64(b.db.Metrics().DiskSpaceUsage())
}

func (b *PebbleBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
