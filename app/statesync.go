package app

import (
	"context"
	"crypto/sha256"
	"fmt"

	bapitypes "github.com/blockberries/bapi/types"

	"github.com/blockberries/subsidy/engine"
	"github.com/blockberries/subsidy/logging"
	"github.com/blockberries/subsidy/types"
)

// ---------------------------------------------------------------------------
// StateSync
// ---------------------------------------------------------------------------

const snapshotFormat uint32 = 1
const snapshotChunkSize = 64 * 1024 // 64 KiB per chunk

// AvailableSnapshots offers the latest committed snapshot. Older
// retained heights stay queryable but are not offered for sync.
func (app *App) AvailableSnapshots(_ context.Context) ([]bapitypes.SnapshotDescriptor, error) {
	height := app.store.Height()
	if height == 0 {
		return nil, nil
	}
	snap, err := app.store.LoadSnapshot(height)
	if err != nil {
		return nil, err
	}
	return []bapitypes.SnapshotDescriptor{describeSnapshot(snap)}, nil
}

// ExportSnapshot streams the stored snapshot at the given height in
// fixed-size chunks.
func (app *App) ExportSnapshot(_ context.Context, height uint64, format uint32) (<-chan bapitypes.SnapshotChunk, *bapitypes.SnapshotDescriptor, error) {
	if format != snapshotFormat {
		return nil, nil, fmt.Errorf("unsupported snapshot format %d", format)
	}
	snap, err := app.store.LoadSnapshot(height)
	if err != nil {
		return nil, nil, err
	}

	data := snap.Bytes()
	desc := describeSnapshot(snap)

	ch := make(chan bapitypes.SnapshotChunk, desc.Chunks)
	go func() {
		defer close(ch)
		for i := uint32(0); i < desc.Chunks; i++ {
			start := int(i) * snapshotChunkSize
			end := start + snapshotChunkSize
			if end > len(data) {
				end = len(data)
			}
			ch <- bapitypes.SnapshotChunk{
				Index: i,
				Data:  data[start:end],
			}
		}
	}()

	return ch, &desc, nil
}

// ImportSnapshot rebuilds state from a streamed snapshot. Missing
// chunks are retried; a hash mismatch or undecodable payload rejects
// the snapshot so the engine can try another provider.
func (app *App) ImportSnapshot(_ context.Context, descriptor bapitypes.SnapshotDescriptor, chunks <-chan bapitypes.SnapshotChunk) (bapitypes.ImportResult, error) {
	if descriptor.Format != snapshotFormat {
		return bapitypes.ImportResult{
			Status: bapitypes.ImportReject,
			Reason: fmt.Sprintf("unsupported format %d", descriptor.Format),
		}, nil
	}

	received := make(map[uint32][]byte)
	for chunk := range chunks {
		received[chunk.Index] = chunk.Data
	}

	if uint32(len(received)) != descriptor.Chunks {
		var missing []uint32
		for i := uint32(0); i < descriptor.Chunks; i++ {
			if _, ok := received[i]; !ok {
				missing = append(missing, i)
			}
		}
		return bapitypes.ImportResult{
			Status:       bapitypes.ImportRetryChunks,
			RetryIndices: missing,
		}, nil
	}

	var data []byte
	for i := uint32(0); i < descriptor.Chunks; i++ {
		data = append(data, received[i]...)
	}

	if bapitypes.Hash(sha256.Sum256(data)) != descriptor.Hash {
		return bapitypes.ImportResult{
			Status: bapitypes.ImportReject,
			Reason: "snapshot hash mismatch",
		}, nil
	}

	snap, err := types.DecodeSnapshot(data)
	if err != nil {
		return bapitypes.ImportResult{
			Status: bapitypes.ImportReject,
			Reason: fmt.Sprintf("decoding snapshot: %v", err),
		}, nil
	}
	eng, err := engine.FromSnapshot(snap, app.collab)
	if err != nil {
		return bapitypes.ImportResult{
			Status: bapitypes.ImportReject,
			Reason: err.Error(),
		}, nil
	}
	if err := app.store.SaveSnapshot(snap); err != nil {
		return bapitypes.ImportResult{}, fmt.Errorf("saving imported snapshot: %w", err)
	}

	app.mu.Lock()
	app.current = eng
	app.staged = nil
	app.mu.Unlock()

	app.log.Info("imported snapshot", logging.Height(snap.Height))

	hash := bapitypes.AppHash(eng.Digest())
	return bapitypes.ImportResult{
		Status:  bapitypes.ImportOK,
		AppHash: &hash,
	}, nil
}

func describeSnapshot(snap *types.StateSnapshot) bapitypes.SnapshotDescriptor {
	data := snap.Bytes()
	chunks := (uint32(len(data)) + snapshotChunkSize - 1) / snapshotChunkSize
	return bapitypes.SnapshotDescriptor{
		Height: snap.Height,
		Format: snapshotFormat,
		Chunks: chunks,
		Hash:   bapitypes.Hash(sha256.Sum256(data)),
	}
}
