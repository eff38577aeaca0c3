package logstore

import "encoding/json"

// UIState returns the stored presenter state for pageKey, or nil.
// The store does not interpret it.
func (s *Store) UIState(pageKey string) json.RawMessage {
	return s.uiMap(UIStateKey)[pageKey]
}

// SetUIState stores opaque presenter state for pageKey.
func (s *Store) SetUIState(pageKey string, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := s.uiMapLocked(UIStateKey)
	if raw == nil {
		delete(states, pageKey)
	} else {
		states[pageKey] = raw
	}
	data, err := json.Marshal(states)
	if err != nil {
		return
	}
	s.kv.Set(UIStateKey, string(data))
}

// GlobalUIState returns the stored state shared by all pages, or nil.
func (s *Store) GlobalUIState() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.kv.Get(GlobalUIKey)
	if !ok || !json.Valid([]byte(data)) {
		return nil
	}
	return json.RawMessage(data)
}

// SetGlobalUIState stores raw as the shared presenter state. Invalid JSON
// is ignored.
func (s *Store) SetGlobalUIState(raw json.RawMessage) {
	if !json.Valid(raw) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv.Set(GlobalUIKey, string(raw))
}

func (s *Store) uiMap(key string) map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uiMapLocked(key)
}

func (s *Store) uiMapLocked(key string) map[string]json.RawMessage {
	states := map[string]json.RawMessage{}
	data, ok := s.kv.Get(key)
	if !ok {
		return states
	}
	if err := json.Unmarshal([]byte(data), &states); err != nil || states == nil {
		return map[string]json.RawMessage{}
	}
	return states
}
