package services

import "sync"

// Settings is a concurrency-safe key/value store for runtime-tunable values
// that do not belong in the static configuration hierarchy.
type Settings struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewSettings creates a settings store seeded with defaults. The defaults
// map may be nil.
func NewSettings(defaults map[string]any) *Settings {
	values := make(map[string]any, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &Settings{values: values}
}

// Set stores a value under key, replacing any existing value.
func (s *Settings) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the raw value and whether it exists.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value as a string, or fallback when absent or of
// another type.
func (s *Settings) GetString(key, fallback string) string {
	if v, ok := s.Get(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return fallback
}

// GetInt returns the value as an int, or fallback.
func (s *Settings) GetInt(key string, fallback int) int {
	if v, ok := s.Get(key); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return fallback
}

// GetBool returns the value as a bool, or fallback.
func (s *Settings) GetBool(key string, fallback bool) bool {
	if v, ok := s.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// Delete removes a key. Missing keys are ignored.
func (s *Settings) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Snapshot returns a copy of all current values.
func (s *Settings) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
