// Package demo implements the demo session store: a session-scoped JSON
// cache keyed by locator key that lets the data-access layer serve reads
// without touching the database while a demo session is active.
package demo

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Storage keys. Cache entries live under dataPrefix.
const (
	flagKey    = "demo:active"
	sessionKey = "demo:session"
	dataPrefix = "demo:data:"
)

// Store is the demo session cache. It holds no state of its own besides the
// storage handle, so several Stores over one storage observe one session.
type Store struct {
	mu      sync.RWMutex
	storage types.SessionStorage
}

// NewStore returns a Store over storage.
func NewStore(storage types.SessionStorage) *Store {
	return &Store{storage: storage}
}

// IsDemo reports whether a demo session is active. Storage failures read as
// not-demo so callers fall back to the database.
func (s *Store) IsDemo() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isDemoLocked()
}

func (s *Store) isDemoLocked() bool {
	v, ok, err := s.storage.GetItem(flagKey)
	if err != nil {
		glog.Warningf("demo: reading session flag: %v", err)
		return false
	}
	return ok && v == "true"
}

// Session returns the active session ID, or "" outside a demo.
func (s *Store) Session() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isDemoLocked() {
		return ""
	}
	v, _, err := s.storage.GetItem(sessionKey)
	if err != nil {
		return ""
	}
	return v
}

// GetData decodes the cache entry for key into v. It reports false when no
// entry exists or no demo session is active.
func (s *Store) GetData(key string, v any) (bool, error) {
	if s == nil {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isDemoLocked() {
		return false, nil
	}
	raw, ok, err := s.storage.GetItem(dataPrefix + key)
	if err != nil {
		return false, fmt.Errorf("reading demo entry %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding demo entry %q: %w", key, err)
	}
	return true, nil
}

// SetData stores v as the cache entry for key, replacing any previous
// entry. It is a no-op outside a demo session.
func (s *Store) SetData(key string, v any) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isDemoLocked() {
		return nil
	}
	return s.setLocked(key, v)
}

func (s *Store) setLocked(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding demo entry %q: %w", key, err)
	}
	if err := s.storage.SetItem(dataPrefix+key, string(raw)); err != nil {
		return fmt.Errorf("writing demo entry %q: %w", key, err)
	}
	return nil
}

// Start begins a new demo session, discarding any previous one, and writes
// the seed entries. It returns the new session ID.
func (s *Store) Start(seed map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Clear(); err != nil {
		return "", fmt.Errorf("clearing previous demo session: %w", err)
	}
	id := ulid.Make().String()
	if err := s.storage.SetItem(sessionKey, id); err != nil {
		return "", fmt.Errorf("writing demo session id: %w", err)
	}
	for key, v := range seed {
		if err := s.setLocked(key, v); err != nil {
			_ = s.storage.Clear()
			return "", err
		}
	}
	// The flag goes last so a failed seed never leaves a half-started demo.
	if err := s.storage.SetItem(flagKey, "true"); err != nil {
		_ = s.storage.Clear()
		return "", fmt.Errorf("raising demo flag: %w", err)
	}
	glog.Infof("demo: session %s started with %d entries", id, len(seed))
	return id, nil
}

// End finishes the demo session, removing the flag and every entry at once.
func (s *Store) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Clear(); err != nil {
		return fmt.Errorf("clearing demo session: %w", err)
	}
	glog.Infof("demo: session ended")
	return nil
}
