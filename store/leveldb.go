package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/blockberries/subsidy/types"
)

// ErrSnapshotNotFound reports a missing snapshot height.
var ErrSnapshotNotFound = errors.New("snapshot not found")

var _ Store = (*LevelDBStore)(nil)

// Key layout.
var (
	prefixSnapshot = []byte("s:") // s:<8-byte height> -> snapshot bytes
	keyMetaHeight  = []byte("m:height")
	keyMetaBase    = []byte("m:base")
)

// LevelDBStore implements Store on LevelDB. Every save is a single
// synced batch, so a snapshot and the metadata pointing at it land
// atomically.
type LevelDBStore struct {
	db     *leveldb.DB
	mu     sync.RWMutex
	height uint64
	base   uint64
}

// NewLevelDBStore opens (or creates) a snapshot store at path.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{NoSync: false})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}
	s := &LevelDBStore{db: db}
	if err := s.loadMetadata(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	return s, nil
}

func (s *LevelDBStore) loadMetadata() error {
	data, err := s.db.Get(keyMetaHeight, nil)
	if err == nil {
		s.height = binary.BigEndian.Uint64(data)
	} else if err != leveldb.ErrNotFound {
		return err
	}
	data, err = s.db.Get(keyMetaBase, nil)
	if err == nil {
		s.base = binary.BigEndian.Uint64(data)
	} else if err != leveldb.ErrNotFound {
		return err
	}
	return nil
}

// SaveSnapshot persists the snapshot at its own height.
func (s *LevelDBStore) SaveSnapshot(snap *types.StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	batch.Put(snapshotKey(snap.Height), snap.Bytes())
	if snap.Height > s.height {
		batch.Put(keyMetaHeight, encodeUint64(snap.Height))
	}
	if s.base == 0 || snap.Height < s.base {
		batch.Put(keyMetaBase, encodeUint64(snap.Height))
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing snapshot at height %d: %w", snap.Height, err)
	}

	if snap.Height > s.height {
		s.height = snap.Height
	}
	if s.base == 0 || snap.Height < s.base {
		s.base = snap.Height
	}
	return nil
}

// LoadSnapshot retrieves the snapshot at the given height.
func (s *LevelDBStore) LoadSnapshot(height uint64) (*types.StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.db.Get(snapshotKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("%w: height %d", ErrSnapshotNotFound, height)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot at height %d: %w", height, err)
	}
	snap, err := types.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot at height %d: %w", height, err)
	}
	return snap, nil
}

// LoadLatest retrieves the snapshot at the highest saved height.
func (s *LevelDBStore) LoadLatest() (*types.StateSnapshot, error) {
	s.mu.RLock()
	height := s.height
	s.mu.RUnlock()

	if height == 0 {
		return nil, ErrSnapshotNotFound
	}
	return s.LoadSnapshot(height)
}

// Height returns the latest saved height.
func (s *LevelDBStore) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Base returns the earliest retained height.
func (s *LevelDBStore) Base() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Prune removes snapshots below the given height.
func (s *LevelDBStore) Prune(below uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if below == 0 || s.height == 0 {
		return 0, nil
	}
	// Never prune the latest snapshot.
	if below > s.height {
		below = s.height
	}
	if below <= s.base {
		return 0, nil
	}

	batch := new(leveldb.Batch)
	pruned := 0
	iter := s.db.NewIterator(&util.Range{
		Start: snapshotKey(s.base),
		Limit: snapshotKey(below),
	}, nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
		pruned++
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterating snapshots: %w", err)
	}
	if pruned == 0 {
		return 0, nil
	}

	batch.Put(keyMetaBase, encodeUint64(below))
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return 0, fmt.Errorf("pruning snapshots below %d: %w", below, err)
	}
	s.base = below
	return pruned, nil
}

// Close closes the underlying database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func snapshotKey(height uint64) []byte {
	key := make([]byte, len(prefixSnapshot)+8)
	copy(key, prefixSnapshot)
	binary.BigEndian.PutUint64(key[len(prefixSnapshot):], height)
	return key
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
