package storage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/peteski22/sitebridge/internal/record"
)

// memoryRecord is a stored record plus its export state.
type memoryRecord struct {
	external map[string]string
	pending  bool
	rec      record.Record
}

// MemoryRecordStore is an in-process record repository for local runs without DynamoDB.
type MemoryRecordStore struct {
	// mu guards records.
	mu sync.Mutex

	// order keeps insertion order so pending exports are returned deterministically.
	order []string

	// records holds records keyed by internal id.
	records map[string]*memoryRecord
}

// NewMemoryRecordStore creates an empty MemoryRecordStore.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*memoryRecord)}
}

// AttachExternalMapping records the external id a provider assigned to an internal record.
func (s *MemoryRecordStore) AttachExternalMapping(
	_ context.Context,
	internalID string,
	providerID string,
	externalID string,
) error {
	if internalID == "" || providerID == "" || externalID == "" {
		return errors.New("internal ID, provider ID and external ID are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[internalID]
	if !ok {
		return errors.New("record not found: " + internalID)
	}
	stored.external[providerID] = externalID
	return nil
}

// ExternalID returns the external id attached to an internal record for a provider.
func (s *MemoryRecordStore) ExternalID(internalID string, providerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[internalID]
	if !ok {
		return "", false
	}
	id, ok := stored.external[providerID]
	return id, ok
}

// Get returns a copy of a stored record.
func (s *MemoryRecordStore) Get(internalID string) (record.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[internalID]
	if !ok {
		return record.Record{}, false
	}
	return cloneRecord(stored.rec), true
}

// IDs returns the stored record ids in insertion order.
func (s *MemoryRecordStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.order)
}

// Len returns the number of stored records.
func (s *MemoryRecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// PendingExport returns every record of type t staged for export.
func (s *MemoryRecordStore) PendingExport(_ context.Context, t record.Type) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []record.Record
	for _, id := range s.order {
		stored := s.records[id]
		if stored.pending && stored.rec.Type == t {
			out = append(out, cloneRecord(stored.rec))
		}
	}
	return out, nil
}

// SaveImported upserts a record pulled from a provider, keeping its export state.
func (s *MemoryRecordStore) SaveImported(_ context.Context, t record.Type, rec record.Record) error {
	rec.Type = t
	return s.upsert(rec, false)
}

// Stage upserts a record and marks it for export. The writer of internal records owns staging.
func (s *MemoryRecordStore) Stage(_ context.Context, rec record.Record) error {
	return s.upsert(rec, true)
}

// upsert stores rec, setting the pending flag when stage is true.
func (s *MemoryRecordStore) upsert(rec record.Record, stage bool) error {
	if rec.ID == "" {
		return errors.New("record ID is required")
	}
	if rec.Type == "" {
		return errors.New("record type is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok {
		stored = &memoryRecord{external: make(map[string]string)}
		s.records[rec.ID] = stored
		s.order = append(s.order, rec.ID)
	}
	stored.rec = cloneRecord(rec)
	stored.pending = stored.pending || stage
	return nil
}

// cloneRecord copies a record so callers cannot mutate stored fields.
func cloneRecord(rec record.Record) record.Record {
	out := rec
	out.Fields = maps.Clone(rec.Fields)
	if out.Fields == nil {
		out.Fields = make(map[string]any)
	}
	return out
}
