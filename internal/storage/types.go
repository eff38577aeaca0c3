package storage

import "errors"

// Backend is a string key/value store. Unlike Adapter, every operation
// reports failure explicitly so backends can be tested on their own.
type Backend interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Remove(key string) error
	// Keys lists every key starting with prefix, in ascending order.
	Keys(prefix string) ([]string, error)
	Close() error
}

// Sizer is implemented by backends that can report their on-disk footprint.
type Sizer interface {
	SizeBytes() int64
}

var (
	// ErrQuotaExceeded is returned when a write would exceed a backend's quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage backend closed")
)
