package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryBackend is a map-backed Backend. Failures can be injected per
// operation and an optional byte quota mimics a browser storage quota.
type MemoryBackend struct {
	mu       sync.Mutex
	data     map[string]string
	failures map[string]error
	quota    int
	closed   bool
}

// NewMemoryBackend returns an empty in-memory backend with no quota.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string]string),
		failures: make(map[string]error),
	}
}

// FailOn makes every subsequent op ("get", "set", "remove", "keys") return
// err. A nil err clears the failure.
func (m *MemoryBackend) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// SetQuota limits the total size of keys plus values in bytes. Zero disables it.
func (m *MemoryBackend) SetQuota(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = bytes
}

// Raw returns the stored value without going through failure injection.
func (m *MemoryBackend) Raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryBackend) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked("get"); err != nil {
		return "", false, err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked("set"); err != nil {
		return err
	}
	if m.quota > 0 {
		used := m.sizeLocked() - m.entrySize(key, m.data[key]) + len(key) + len(value)
		if used > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.data[key] = value
	return nil
}

func (m *MemoryBackend) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked("remove"); err != nil {
		return err
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked("keys"); err != nil {
		return nil, err
	}
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// SizeBytes returns the total size of keys plus values.
func (m *MemoryBackend) SizeBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(m.sizeLocked())
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryBackend) checkLocked(op string) error {
	if m.closed {
		return ErrClosed
	}
	return m.failures[op]
}

func (m *MemoryBackend) sizeLocked() int {
	n := 0
	for k, v := range m.data {
		n += len(k) + len(v)
	}
	return n
}

func (m *MemoryBackend) entrySize(key, value string) int {
	if _, ok := m.data[key]; !ok {
		return 0
	}
	return len(key) + len(value)
}
