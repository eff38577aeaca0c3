package logstore

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/clock"
	"github.com/runnerr0/runtimelog/internal/metrics"
)

// Default retention limits.
const (
	MaxEntries = 5000
	MaxAge     = 24 * time.Hour
)

// KV is the fail-soft key/value surface the store persists through.
// *storage.Adapter implements it.
type KV interface {
	Get(key string) (string, bool)
	// Lookup reports a failed read as an error instead of a missing key.
	Lookup(key string) (string, bool, error)
	Set(key, value string)
	Remove(key string)
	Keys(prefix string) []string
}

// Store owns the persisted log lists and the page registry. Each
// read-modify-write runs under one mutex.
type Store struct {
	mu sync.Mutex

	kv         KV
	clock      clock.Clock
	loc        *time.Location
	maxAge     time.Duration
	maxEntries int
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for retention and the registry.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLocation sets the zone used when backfilling datetimes.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithRetention overrides the age and count limits. Non-positive values
// keep the defaults.
func WithRetention(maxAge time.Duration, maxEntries int) Option {
	return func(s *Store) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
		if maxEntries > 0 {
			s.maxEntries = maxEntries
		}
	}
}

// WithLogger sets the logger for decode warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records append, eviction and migration counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store over kv.
func New(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		clock:      clock.Real(),
		loc:        time.Local,
		maxAge:     MaxAge,
		maxEntries: MaxEntries,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.clock.Now() }

// Location returns the zone used for datetimes.
func (s *Store) Location() *time.Location { return s.loc }

// Append adds e to the page's list, applies retention, persists the list,
// touches the registry and returns the retained list. If the stored list
// cannot be read, nothing is written and the result holds only e.
func (s *Store) Append(pageKey string, e Entry) []Entry {
	return s.AppendOnto(pageKey, nil, e)
}

// AppendOnto is Append with a fallback: when the stored list cannot be
// read, e is appended to working and that list is persisted instead. A
// nil working skips the write so stored history is never replaced by a
// partial list.
func (s *Store) AppendOnto(pageKey string, working []Entry, e Entry) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(pageKey)
	if err != nil {
		if working == nil {
			s.log.Warn("logstore_append_not_persisted", zap.String("page", pageKey), zap.Error(err))
			return []Entry{e}
		}
		list = cloneEntries(working)
	}
	list = append(list, e)
	retained := s.saveLocked(pageKey, list)
	s.touchLocked(pageKey)
	s.metrics.EntryAppended()
	return cloneEntries(retained)
}

// Replace persists entries as the page's whole list, through the same
// retention path as Append.
func (s *Store) Replace(pageKey string, entries []Entry) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.saveLocked(pageKey, cloneEntries(entries)))
}

// Read returns the page's entries newer than the age limit. Legacy entries
// are migrated and, if anything changed, the list is written back once.
func (s *Store) Read(pageKey string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.readLocked(pageKey))
}

func (s *Store) readLocked(pageKey string) []Entry {
	raws, err := s.decodeLocked(pageKey)
	if err != nil || raws == nil {
		return []Entry{}
	}
	entries, migrated := migrate(raws, s.clock.Now(), s.loc)
	entries = s.dropOld(entries)
	if migrated > 0 {
		s.metrics.EntriesMigrated(migrated)
		entries = s.writeBack(pageKey, entries)
	}
	return entries
}

// writeBack persists a migrated list. It is the only write on the read path.
func (s *Store) writeBack(pageKey string, entries []Entry) []Entry {
	return s.saveLocked(pageKey, entries)
}

// loadLocked returns the stored list for appending, without the
// migration write-back. An error means the list could not be read.
func (s *Store) loadLocked(pageKey string) ([]Entry, error) {
	raws, err := s.decodeLocked(pageKey)
	if err != nil || raws == nil {
		return nil, err
	}
	entries, _ := migrate(raws, s.clock.Now(), s.loc)
	return entries, nil
}

// decodeLocked returns nil raws for a missing or malformed list. Only a
// failed read is an error.
func (s *Store) decodeLocked(pageKey string) ([]RawEntry, error) {
	data, found, err := s.kv.Lookup(logsKey(pageKey))
	if err != nil {
		return nil, err
	}
	if !found || data == "" {
		return nil, nil
	}
	raws, skipped, err := decodeList(data)
	if err != nil {
		s.log.Warn("logstore_decode_failed", zap.String("page", pageKey), zap.Error(err))
		return nil, nil
	}
	if skipped > 0 {
		s.log.Warn("logstore_entries_skipped", zap.String("page", pageKey), zap.Int("count", skipped))
	}
	return raws, nil
}

// saveLocked applies retention and persists the list.
func (s *Store) saveLocked(pageKey string, entries []Entry) []Entry {
	retained := s.dropOld(entries)
	if over := len(retained) - s.maxEntries; over > 0 {
		retained = retained[over:]
		s.metrics.EntriesEvicted("count", over)
	}
	if retained == nil {
		retained = []Entry{}
	}

	data, err := json.Marshal(retained)
	if err != nil {
		s.log.Warn("logstore_encode_failed", zap.String("page", pageKey), zap.Error(err))
		return retained
	}
	s.kv.Set(logsKey(pageKey), string(data))
	return retained
}

// dropOld removes entries with ts older than now minus the age limit.
func (s *Store) dropOld(entries []Entry) []Entry {
	cutoff := s.clock.Now().Add(-s.maxAge).UnixMilli()
	kept := entries[:0:0]
	for _, e := range entries {
		if e.TS >= cutoff {
			kept = append(kept, e)
		}
	}
	if dropped := len(entries) - len(kept); dropped > 0 {
		s.metrics.EntriesEvicted("age", dropped)
	}
	return kept
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
