// Package memory is an in-memory store implementation used by tests and the
// dry-run CLI mode. It honors the same transactional batch semantics as the
// PostgreSQL store: a batch either fully applies or not at all.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ekowhinson/HRMS-sub000/internal/store"
)

// Store keeps records per entity type in maps guarded by one mutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]store.Record // entity -> id -> record
	keys    map[string]map[string]string       // entity -> lower(natural key) -> id

	// FailInsert, when set, is consulted before each BulkInsert; returning a
	// non-nil error simulates a backing-store failure for that call.
	FailInsert func(entityType string, records []store.Record) error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]map[string]store.Record),
		keys:    make(map[string]map[string]string),
	}
}

// Seed inserts a record directly, bypassing batch semantics. Test setup only.
func (s *Store) Seed(entityType string, rec store.Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	s.ensure(entityType)
	s.records[entityType][rec.ID] = rec
	s.index(entityType, rec)
	return rec.ID
}

// LookupKeys implements store.Store.
func (s *Store) LookupKeys(_ context.Context, entityType string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.keys[entityType]))
	for k, id := range s.keys[entityType] {
		out[k] = id
	}
	return out, nil
}

// BulkInsert implements store.Store. Duplicate natural keys within the store
// produce a ConstraintError and leave the whole batch unapplied.
func (s *Store) BulkInsert(_ context.Context, entityType string, records []store.Record) error {
	if s.FailInsert != nil {
		if err := s.FailInsert(entityType, records); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(entityType)

	// Validate the whole batch before applying any of it.
	staged := make(map[string]bool, len(records))
	for _, rec := range records {
		key := strings.ToLower(rec.Key)
		if key == "" {
			continue
		}
		if _, exists := s.keys[entityType][key]; exists || staged[key] {
			return &store.ConstraintError{
				Key: rec.Key,
				Err: fmt.Errorf("duplicate natural key in %s", entityType),
			}
		}
		staged[key] = true
	}

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		s.records[entityType][rec.ID] = rec
		s.index(entityType, rec)
	}
	return nil
}

// BulkUpdate implements store.Store.
func (s *Store) BulkUpdate(_ context.Context, entityType string, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(entityType)

	for _, rec := range records {
		if _, exists := s.records[entityType][rec.ID]; !exists {
			return fmt.Errorf("update of unknown %s id %s", entityType, rec.ID)
		}
	}
	for _, rec := range records {
		existing := s.records[entityType][rec.ID]
		for name, value := range rec.Fields {
			if existing.Fields == nil {
				existing.Fields = make(map[string]any)
			}
			existing.Fields[name] = value
		}
		s.records[entityType][rec.ID] = existing
	}
	return nil
}

// Count returns the number of stored records for an entity type.
func (s *Store) Count(entityType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[entityType])
}

// Get returns a stored record by id.
func (s *Store) Get(entityType, id string) (store.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[entityType][id]
	return rec, ok
}

func (s *Store) ensure(entityType string) {
	if s.records[entityType] == nil {
		s.records[entityType] = make(map[string]store.Record)
		s.keys[entityType] = make(map[string]string)
	}
}

func (s *Store) index(entityType string, rec store.Record) {
	if rec.Key != "" {
		s.keys[entityType][strings.ToLower(rec.Key)] = rec.ID
	}
	if rec.Name != "" {
		s.keys[entityType][strings.ToLower(rec.Name)] = rec.ID
	}
}
