package logstore

import (
	"encoding/json"
	"sort"

	"go.uber.org/zap"
)

type indexRecord struct {
	FirstSeen int64 `json:"firstSeen"`
	LastSeen  int64 `json:"lastSeen"`
}

// Touch registers pageKey, or bumps its lastSeen if already known.
func (s *Store) Touch(pageKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(pageKey)
}

// touchLocked leaves the index alone when it cannot be read, so a failed
// read never replaces it with a one-page map.
func (s *Store) touchLocked(pageKey string) {
	idx, err := s.loadIndexLocked()
	if err != nil {
		return
	}
	now := s.clock.Now().UnixMilli()
	rec, ok := idx[pageKey]
	if !ok {
		rec.FirstSeen = now
	}
	rec.LastSeen = now
	idx[pageKey] = rec
	s.saveIndexLocked(idx)
}

// ListPageKeys returns registered pages, most recently seen first.
func (s *Store) ListPageKeys() []string {
	pages := s.Pages()
	keys := make([]string, len(pages))
	for i, p := range pages {
		keys[i] = p.PageKey
	}
	return keys
}

// Pages returns registry records, most recently seen first. Ties are
// ordered by page key.
func (s *Store) Pages() []PageInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagesLocked()
}

func (s *Store) pagesLocked() []PageInfo {
	idx, _ := s.loadIndexLocked()
	pages := make([]PageInfo, 0, len(idx))
	for k, rec := range idx {
		pages = append(pages, PageInfo{PageKey: k, FirstSeen: rec.FirstSeen, LastSeen: rec.LastSeen})
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].LastSeen != pages[j].LastSeen {
			return pages[i].LastSeen > pages[j].LastSeen
		}
		return pages[i].PageKey < pages[j].PageKey
	})
	return pages
}

// ClearPage removes the page's logs and its registry entry.
func (s *Store) ClearPage(pageKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kv.Remove(logsKey(pageKey))
	idx, err := s.loadIndexLocked()
	if err != nil {
		return
	}
	delete(idx, pageKey)
	s.saveIndexLocked(idx)
}

// ClearAll removes every page's logs, including lists no longer in the
// registry, and empties the registry.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, _ := s.loadIndexLocked()
	for k := range idx {
		s.kv.Remove(logsKey(k))
	}
	for _, k := range s.kv.Keys(LogsKeyPrefix) {
		s.kv.Remove(k)
	}
	s.saveIndexLocked(map[string]indexRecord{})
}

// loadIndexLocked returns the registry map. A missing or corrupt index is
// empty; only a failed read is an error.
func (s *Store) loadIndexLocked() (map[string]indexRecord, error) {
	idx := map[string]indexRecord{}
	data, found, err := s.kv.Lookup(IndexKey)
	if err != nil {
		return idx, err
	}
	if !found || data == "" {
		return idx, nil
	}
	if err := json.Unmarshal([]byte(data), &idx); err != nil {
		s.log.Warn("logstore_index_decode_failed", zap.Error(err))
		return map[string]indexRecord{}, nil
	}
	if idx == nil {
		idx = map[string]indexRecord{}
	}
	return idx, nil
}

func (s *Store) saveIndexLocked(idx map[string]indexRecord) {
	data, err := json.Marshal(idx)
	if err != nil {
		s.log.Warn("logstore_index_encode_failed", zap.Error(err))
		return
	}
	s.kv.Set(IndexKey, string(data))
}
