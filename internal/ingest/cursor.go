package ingest

import (
	"context"
	"sync"
)

// CursorStore tracks the highest fully-processed block per event kind.
// The in-memory implementation is the default; internal/checkpoint provides
// a Postgres-backed one for restart resilience.
type CursorStore interface {
	Load(ctx context.Context, kind string) (block uint64, ok bool, err error)
	Save(ctx context.Context, kind string, block uint64) error
}

type MemCursors struct {
	mu      sync.Mutex
	cursors map[string]uint64
}

func NewMemCursors() *MemCursors {
	return &MemCursors{cursors: make(map[string]uint64)}
}

func (m *MemCursors) Load(_ context.Context, kind string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, ok := m.cursors[kind]
	return block, ok, nil
}

func (m *MemCursors) Save(_ context.Context, kind string, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Monotonic, but a first save of block 0 still establishes the cursor.
	if cur, ok := m.cursors[kind]; !ok || block > cur {
		m.cursors[kind] = block
	}
	return nil
}
