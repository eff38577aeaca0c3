package storage

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/metrics"
)

// Adapter is the fail-soft boundary over a Backend. Errors and panics
// from the backend are logged, counted and replaced by defaults: a failed
// read looks like a missing key, a failed write is dropped. Lookup keeps
// the read error for callers that rewrite what they read.
type Adapter struct {
	backend   Backend
	log       *zap.Logger
	metrics   *metrics.Metrics
	namespace string
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for storage warnings.
func WithLogger(l *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics counts storage failures on m.
func WithMetrics(m *metrics.Metrics) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

// WithNamespace prefixes every key with ns. Keys returns them unprefixed.
func WithNamespace(ns string) AdapterOption {
	return func(a *Adapter) { a.namespace = ns }
}

// NewAdapter wraps b.
func NewAdapter(b Backend, opts ...AdapterOption) *Adapter {
	a := &Adapter{backend: b, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Get returns the stored value, or ("", false) when absent or unreadable.
func (a *Adapter) Get(key string) (value string, found bool) {
	value, found, _ = a.Lookup(key)
	return value, found
}

// Lookup is Get for callers that must tell a missing key from a failed
// read. The error has already been logged and counted.
func (a *Adapter) Lookup(key string) (value string, found bool, err error) {
	err = a.guard("get", key, func() error {
		var err error
		value, found, err = a.backend.Get(a.namespace + key)
		return err
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// Set stores value under key. Failures are logged and otherwise ignored.
func (a *Adapter) Set(key, value string) {
	a.guard("set", key, func() error {
		return a.backend.Set(a.namespace+key, value)
	})
}

// Remove deletes key. Failures are logged and otherwise ignored.
func (a *Adapter) Remove(key string) {
	a.guard("remove", key, func() error {
		return a.backend.Remove(a.namespace + key)
	})
}

// Keys lists keys with the given prefix, namespace stripped. Returns nil
// on failure.
func (a *Adapter) Keys(prefix string) []string {
	var keys []string
	err := a.guard("keys", prefix, func() error {
		var err error
		keys, err = a.backend.Keys(a.namespace + prefix)
		return err
	})
	if err != nil {
		return nil
	}
	if a.namespace == "" {
		return keys
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, a.namespace))
	}
	return out
}

// Backend returns the wrapped backend.
func (a *Adapter) Backend() Backend { return a.backend }

// SizeBytes reports the backend footprint, or -1 when unknown.
func (a *Adapter) SizeBytes() int64 {
	if s, ok := a.backend.(Sizer); ok {
		return s.SizeBytes()
	}
	return -1
}

// Close closes the wrapped backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

func (a *Adapter) guard(op, key string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			a.log.Warn("storage_"+op+"_failed", zap.String("key", key), zap.Error(err))
			a.metrics.StorageFailed(op)
		}
	}()
	return fn()
}
