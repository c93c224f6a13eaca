// Package progress is the job-keyed progress snapshot store. Snapshots are
// written by the executor after every chunk and polled by external callers;
// entries expire on their own so finished jobs need no cleanup pass.
package progress

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Snapshot is the externally visible progress of one job.
type Snapshot struct {
	JobID       string  `json:"jobId"`
	Processed   int     `json:"processed"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
	Chunk       int     `json:"chunk"`
	TotalChunks int     `json:"totalChunks"`
}

// Store is the key-value progress interface with TTL semantics.
type Store interface {
	Put(jobID string, s Snapshot)
	Get(jobID string) (Snapshot, bool)
}

// DefaultTTL is how long a snapshot stays readable after its last write.
var DefaultTTL = 30 * time.Minute

// DefaultCapacity bounds how many jobs keep snapshots at once.
var DefaultCapacity = 1024

// MemoryStore is the in-process Store backed by an expiring LRU cache.
type MemoryStore struct {
	cache *expirable.LRU[string, Snapshot]
}

// NewMemoryStore creates a store with the given capacity and TTL; zero
// values fall back to the defaults.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, Snapshot](capacity, nil, ttl),
	}
}

// Put stores the snapshot and refreshes its TTL.
func (m *MemoryStore) Put(jobID string, s Snapshot) {
	m.cache.Add(jobID, s)
}

// Get returns the latest snapshot for a job, if not yet expired.
func (m *MemoryStore) Get(jobID string) (Snapshot, bool) {
	return m.cache.Get(jobID)
}
