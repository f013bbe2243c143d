package session

import (
	"context"
	"sync"
)

// Persister stores the durable snapshot of one session.
type Persister interface {
	// Read returns the persisted keys. A session that was never written reads as
	// an empty snapshot.
	Read(ctx context.Context) (Snapshot, error)
	// Write replaces the persisted session keys with snap. Keys absent from snap
	// are removed.
	Write(ctx context.Context, snap Snapshot) error
}

// MemoryPersister keeps the snapshot in process memory.
type MemoryPersister struct {
	mu     sync.Mutex
	values Snapshot
	// Err, when set, fails every Write. Reads keep working.
	Err error
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{values: Snapshot{}}
}

// Read implements Persister.
func (m *MemoryPersister) Read(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Snapshot, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// Write implements Persister.
func (m *MemoryPersister) Write(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	values := make(Snapshot, len(snap))
	for k, v := range snap {
		values[k] = v
	}
	m.values = values
	return nil
}
