package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStateStore keeps per-provider last sync times in process.
// A long-running local server uses it so incremental imports resume from the previous cycle.
type MemoryStateStore struct {
	// last maps provider ids to their last successful sync time.
	last map[string]time.Time

	// mu guards last.
	mu sync.Mutex
}

// NewMemoryStateStore creates an empty MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{last: make(map[string]time.Time)}
}

// LastSyncTime returns the provider's last successful sync time, zero if none.
func (s *MemoryStateStore) LastSyncTime(_ context.Context, provider string) (time.Time, error) {
	if provider == "" {
		return time.Time{}, errors.New("provider is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last[provider], nil
}

// SetLastSyncTime records a successful cycle for the provider. Earlier times never replace later ones.
func (s *MemoryStateStore) SetLastSyncTime(_ context.Context, provider string, t time.Time) error {
	if provider == "" {
		return errors.New("provider is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.After(s.last[provider]) {
		s.last[provider] = t.UTC()
	}
	return nil
}
