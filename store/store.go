// Package store persists committed engine state, one snapshot per
// height.
package store

import "github.com/blockberries/subsidy/types"

// Store defines the interface for committed-state persistence.
// Implementations must be safe for concurrent use.
//
// Saves are idempotent: re-saving a height after a crash-replay
// overwrites the identical snapshot.
type Store interface {
	// SaveSnapshot persists the snapshot at its own height.
	SaveSnapshot(snap *types.StateSnapshot) error

	// LoadSnapshot retrieves the snapshot at the given height.
	// Returns ErrSnapshotNotFound if the height was never saved or
	// has been pruned.
	LoadSnapshot(height uint64) (*types.StateSnapshot, error)

	// LoadLatest retrieves the snapshot at the highest saved height.
	// Returns ErrSnapshotNotFound on an empty store.
	LoadLatest() (*types.StateSnapshot, error)

	// Height returns the latest saved height, 0 if none.
	Height() uint64

	// Base returns the earliest retained height, 0 if none.
	Base() uint64

	// Prune removes snapshots below the given height and returns how
	// many were removed. The latest snapshot is never pruned.
	Prune(below uint64) (int, error)

	// Close releases resources.
	Close() error
}
