package store

import (
	"fmt"
	"sync"

	"github.com/blockberries/subsidy/types"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in memory. Primarily used for testing
// and for nodes that do not need restart durability.
type MemoryStore struct {
	mu     sync.RWMutex
	snaps  map[uint64][]byte
	height uint64
	base   uint64
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[uint64][]byte)}
}

// SaveSnapshot stores the snapshot at its own height.
func (m *MemoryStore) SaveSnapshot(snap *types.StateSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snaps[snap.Height] = snap.Bytes()
	if snap.Height > m.height {
		m.height = snap.Height
	}
	if m.base == 0 || snap.Height < m.base {
		m.base = snap.Height
	}
	return nil
}

// LoadSnapshot retrieves the snapshot at the given height.
func (m *MemoryStore) LoadSnapshot(height uint64) (*types.StateSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snaps[height]
	if !ok {
		return nil, fmt.Errorf("%w: height %d", ErrSnapshotNotFound, height)
	}
	return types.DecodeSnapshot(data)
}

// LoadLatest retrieves the snapshot at the highest saved height.
func (m *MemoryStore) LoadLatest() (*types.StateSnapshot, error) {
	m.mu.RLock()
	height := m.height
	m.mu.RUnlock()

	if height == 0 {
		return nil, ErrSnapshotNotFound
	}
	return m.LoadSnapshot(height)
}

// Height returns the latest saved height.
func (m *MemoryStore) Height() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height
}

// Base returns the earliest retained height.
func (m *MemoryStore) Base() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base
}

// Prune removes snapshots below the given height.
func (m *MemoryStore) Prune(below uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if below == 0 || m.height == 0 {
		return 0, nil
	}
	if below > m.height {
		below = m.height
	}
	pruned := 0
	for h := range m.snaps {
		if h < below {
			delete(m.snaps, h)
			pruned++
		}
	}
	if pruned > 0 {
		m.base = below
	}
	return pruned, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
