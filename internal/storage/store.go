package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hybrid_copilot/pkg"
)

// ErrNotFound is returned when no result is stored under an id
var ErrNotFound = errors.New("run not found")

const runPrefix = "run:"

// RunStore keeps finished run results for later lookup
type RunStore interface {
	Save(ctx context.Context, result pkg.Result) error
	Get(ctx context.Context, id string) (*pkg.Result, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// key generates the storage key for a run id
func key(id string) string {
	return runPrefix + id
}

type memoryEntry struct {
	result  pkg.Result
	savedAt time.Time
}

// MemoryRunStore is an in-process RunStore used when Redis is not configured
type MemoryRunStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryRunStore creates a memory store. A ttl of zero keeps entries
// forever.
func NewMemoryRunStore(ttl time.Duration) *MemoryRunStore {
	return &MemoryRunStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save stores or replaces a result
func (m *MemoryRunStore) Save(_ context.Context, result pkg.Result) error {
	if result.ID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key(result.ID)] = memoryEntry{result: result, savedAt: m.now()}
	return nil
}

// Get retrieves a result by id
func (m *MemoryRunStore) Get(_ context.Context, id string) (*pkg.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if m.ttl > 0 && m.now().Sub(entry.savedAt) > m.ttl {
		delete(m.entries, key(id))
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	result := entry.result
	return &result, nil
}

// Delete removes a result
func (m *MemoryRunStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key(id))
	return nil
}

// Close is a no-op
func (m *MemoryRunStore) Close() error {
	return nil
}
