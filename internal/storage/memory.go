package storage

import (
	"context"
	"sync"

	"github.com/peteski22/sitebridge/internal/record"
)

// mappingRef addresses one side of a mapping.
type mappingRef struct {
	id       string
	provider string
	rtype    record.Type
}

// MemoryMappingStore is an in-process mapping store for local runs and tests.
type MemoryMappingStore struct {
	// byExternal maps external refs to internal ids.
	byExternal map[mappingRef]string

	// byInternal maps internal refs to external ids.
	byInternal map[mappingRef]string

	// mu guards both maps.
	mu sync.Mutex
}

// NewMemoryMappingStore creates an empty MemoryMappingStore.
func NewMemoryMappingStore() *MemoryMappingStore {
	return &MemoryMappingStore{
		byExternal: make(map[mappingRef]string),
		byInternal: make(map[mappingRef]string),
	}
}

// Invalidate removes a mapping.
func (s *MemoryMappingStore) Invalidate(_ context.Context, m record.Mapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byExternal, mappingRef{id: m.ExternalID, provider: m.Provider, rtype: m.Type})
	delete(s.byInternal, mappingRef{id: m.InternalID, provider: m.Provider, rtype: m.Type})
	return nil
}

// Len returns the number of stored mappings.
func (s *MemoryMappingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.byExternal)
}

// LookupExternal returns the external id mapped to an internal record.
func (s *MemoryMappingStore) LookupExternal(
	_ context.Context,
	provider string,
	t record.Type,
	internalID string,
) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byInternal[mappingRef{id: internalID, provider: provider, rtype: t}]
	return id, ok, nil
}

// LookupInternal returns the internal id mapped to an external record.
func (s *MemoryMappingStore) LookupInternal(
	_ context.Context,
	provider string,
	t record.Type,
	externalID string,
) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byExternal[mappingRef{id: externalID, provider: provider, rtype: t}]
	return id, ok, nil
}

// Put stores a mapping, replacing any earlier mapping of either side.
func (s *MemoryMappingStore) Put(_ context.Context, m record.Mapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	extRef := mappingRef{id: m.ExternalID, provider: m.Provider, rtype: m.Type}
	intRef := mappingRef{id: m.InternalID, provider: m.Provider, rtype: m.Type}

	if prev, ok := s.byExternal[extRef]; ok && prev != m.InternalID {
		delete(s.byInternal, mappingRef{id: prev, provider: m.Provider, rtype: m.Type})
	}
	if prev, ok := s.byInternal[intRef]; ok && prev != m.ExternalID {
		delete(s.byExternal, mappingRef{id: prev, provider: m.Provider, rtype: m.Type})
	}

	s.byExternal[extRef] = m.InternalID
	s.byInternal[intRef] = m.ExternalID
	return nil
}
