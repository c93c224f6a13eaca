package core

// refcache.go is the tier-scoped natural-key cache. It is the only
// sanctioned way row processing resolves a reference: no per-row lookups
// against the backing store, so executor throughput stays independent of
// reference-table size.

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ekowhinson/HRMS-sub000/internal/store"
)

// ReferenceResolver caches natural key to internal id per entity type.
// Mutated only during Prime/Refresh (single writer, between tiers); strictly
// read-only during row processing, so resolve needs no per-row locking
// beyond the RWMutex read path.
type ReferenceResolver struct {
	store store.Store

	mu    sync.RWMutex
	cache map[string]map[string]string // entity -> lower(natural key) -> id
}

// NewReferenceResolver creates a resolver over the given store.
func NewReferenceResolver(st store.Store) *ReferenceResolver {
	return &ReferenceResolver{
		store: st,
		cache: make(map[string]map[string]string),
	}
}

// Prime loads every existing natural key for the requested entity types.
// Previously cached entries for those types are replaced wholesale, never
// incrementally trusted.
func (r *ReferenceResolver) Prime(ctx context.Context, entityTypes []string) error {
	for _, entity := range entityTypes {
		keys, err := r.store.LookupKeys(ctx, entity)
		if err != nil {
			return fmt.Errorf("prime reference cache for %s: %w", entity, err)
		}

		r.mu.Lock()
		r.cache[entity] = keys
		r.mu.Unlock()
	}
	return nil
}

// Refresh re-primes after a tier commits so subsequent tiers observe rows
// created by the prior tier.
func (r *ReferenceResolver) Refresh(ctx context.Context, entityTypes []string) error {
	return r.Prime(ctx, entityTypes)
}

// Resolve maps a natural-key value (case-insensitive) to an internal id.
func (r *ReferenceResolver) Resolve(entityType, naturalKey string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, ok := r.cache[entityType]
	if !ok {
		return "", false
	}
	id, ok := keys[strings.ToLower(strings.TrimSpace(naturalKey))]
	return id, ok
}

// Known reports whether an entity type has been primed at all.
func (r *ReferenceResolver) Known(entityType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cache[entityType]
	return ok
}

// Discard drops all cached entries. Called when a batch finishes so caches
// never outlive their job.
func (r *ReferenceResolver) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]map[string]string)
}
