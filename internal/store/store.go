// Package store defines the backing-store contract the import engine
// requires: natural-key lookup, transactional bulk insert and bulk update,
// per entity type. The engine does not define the store's schema.
package store

import (
	"context"
	"fmt"
)

// Record is one resolved row bound for persistence. Fields holds coerced
// values keyed by canonical field name; reference fields hold the referenced
// entity's internal id.
type Record struct {
	ID     string // Internal id; empty for inserts, assigned by the store
	Key    string // Natural-key code (already generated when absent from the file)
	Name   string // Secondary natural key (human-readable name)
	Fields map[string]any
}

// Store is the only gateway to persisted entities.
//
// BulkInsert and BulkUpdate are all-or-nothing per call: either every record
// in the batch commits or none does.
type Store interface {
	// LookupKeys returns every existing natural key for the entity type,
	// lower-cased, mapped to its internal id. Both codes and names appear.
	LookupKeys(ctx context.Context, entityType string) (map[string]string, error)

	// BulkInsert persists the records in one transaction.
	BulkInsert(ctx context.Context, entityType string, records []Record) error

	// BulkUpdate updates existing records (matched by ID) in one transaction.
	BulkUpdate(ctx context.Context, entityType string, records []Record) error
}

// ConstraintError reports a uniqueness violation the store could tie to one
// specific record, typically a duplicate natural key. The executor retries
// such records individually with a regenerated key.
type ConstraintError struct {
	Key string // The offending natural key, when known
	Err error
}

func (e *ConstraintError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("constraint violation on key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("constraint violation: %v", e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }
