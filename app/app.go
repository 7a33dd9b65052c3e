// Package app hosts the subsidy claim engine as a BAPI application.
//
// Blocks execute against a clone of the committed engine; Commit swaps
// the clone in and persists its snapshot through the store. The app
// hash is the sha256 digest of the canonical state snapshot, so every
// correct node reports the same hash after the same block.
//
// Transactions are cramberry-encoded types.Tx envelopes carrying
// exactly one operation arm. Queries serve committed state only.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blockberries/bapi"
	bapitypes "github.com/blockberries/bapi/types"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/engine"
	"github.com/blockberries/subsidy/logging"
	"github.com/blockberries/subsidy/metrics"
	"github.com/blockberries/subsidy/store"
	"github.com/blockberries/subsidy/types"
)

// Compile-time interface checks.
var (
	_ bapi.Lifecycle       = (*App)(nil)
	_ bapi.ProposalControl = (*App)(nil)
	_ bapi.StateSync       = (*App)(nil)
	_ bapi.Simulator       = (*App)(nil)
)

// capabilities declared at handshake. Vote extensions are not offered:
// the claim engine carries no per-validator data to attest.
const capabilities = bapitypes.CapProposalControl | bapitypes.CapStateSync | bapitypes.CapSimulation

// App runs the claim lifecycle under a consensus engine.
type App struct {
	mu      sync.RWMutex
	current *engine.Engine
	staged  *engine.Engine

	store  store.Store
	collab subsidy.Collaborators

	log     *logging.Logger
	metrics metrics.Metrics

	chainID      string
	retainBlocks uint64
}

// Option configures the application.
type Option func(*App)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(log *logging.Logger) Option {
	return func(a *App) { a.log = log.WithComponent("app") }
}

// WithMetrics sets the metrics sink. Defaults to no-op metrics.
func WithMetrics(m metrics.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithChainID pins the chain id the genesis document must carry.
// Empty disables the check.
func WithChainID(id string) Option {
	return func(a *App) { a.chainID = id }
}

// WithRetainBlocks bounds how many committed snapshots the store
// keeps. Zero keeps everything.
func WithRetainBlocks(n uint64) Option {
	return func(a *App) { a.retainBlocks = n }
}

// New creates an application backed by the given store and
// collaborators. The engine itself is built at handshake, from the
// genesis document on a fresh chain or from the latest stored
// snapshot on restart; until then the app serves an empty state.
func New(st store.Store, collab subsidy.Collaborators, opts ...Option) (*App, error) {
	eng, err := engine.New(types.GenesisState{}, collab)
	if err != nil {
		return nil, err
	}
	app := &App{
		current: eng,
		store:   st,
		collab:  collab,
		log:     logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Handshake initializes the engine. A handshake without a committed
// block is a fresh chain and must carry a genesis document; otherwise
// the latest stored snapshot is restored and its height reported so
// the consensus engine can replay anything newer.
func (app *App) Handshake(_ context.Context, req bapitypes.HandshakeRequest) (bapitypes.HandshakeResponse, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if req.LastCommitted == nil {
		if req.Genesis == nil {
			return bapitypes.HandshakeResponse{}, errors.New("handshake carries neither a committed block nor a genesis document")
		}
		if app.chainID != "" && req.Genesis.ChainID != app.chainID {
			return bapitypes.HandshakeResponse{}, fmt.Errorf("genesis chain id %q, node is configured for %q", req.Genesis.ChainID, app.chainID)
		}
		gen, err := types.ParseGenesisState(req.Genesis.AppState)
		if err != nil {
			return bapitypes.HandshakeResponse{}, err
		}
		eng, err := engine.New(gen, app.collab)
		if err != nil {
			return bapitypes.HandshakeResponse{}, err
		}
		app.current = eng
		h := bapitypes.AppHash(eng.Digest())
		app.log.Info("initialized from genesis",
			"chain_id", req.Genesis.ChainID,
			logging.Farmer(gen.Admin))
		return bapitypes.HandshakeResponse{
			AppHash:      &h,
			Capabilities: capabilities,
		}, nil
	}

	snap, err := app.store.LoadLatest()
	if err != nil {
		return bapitypes.HandshakeResponse{}, fmt.Errorf("restoring committed state: %w", err)
	}
	eng, err := engine.FromSnapshot(snap, app.collab)
	if err != nil {
		return bapitypes.HandshakeResponse{}, err
	}
	app.current = eng
	h := bapitypes.AppHash(eng.Digest())
	app.log.Info("restored committed state", logging.Height(snap.Height))
	return bapitypes.HandshakeResponse{
		LastBlock:    &bapitypes.BlockID{Height: snap.Height},
		AppHash:      &h,
		Capabilities: capabilities,
	}, nil
}

// CheckTx admits transactions to the mempool. Only the decode step and
// the engine's collaborator-free gate run here; the full validation
// chain runs again inside the block.
func (app *App) CheckTx(_ context.Context, raw bapitypes.Tx, _ bapitypes.MempoolContext) (bapitypes.GateVerdict, error) {
	tx, err := types.DecodeTx(raw)
	if err != nil {
		app.metrics.IncTxsChecked(metrics.ResultRejected)
		return bapitypes.GateVerdict{Code: uint32(types.CodeInvalidTx), Info: err.Error()}, nil
	}

	app.mu.RLock()
	eng := app.current
	app.mu.RUnlock()

	if err := eng.Gate(tx); err != nil {
		app.metrics.IncTxsChecked(metrics.ResultRejected)
		return bapitypes.GateVerdict{Code: outcomeCode(err), Info: err.Error()}, nil
	}

	app.metrics.IncTxsChecked(metrics.ResultAccepted)
	priority := int64(5)
	if tx.AdminOp() {
		priority = 10
	}
	return bapitypes.GateVerdict{Priority: priority, Sender: string(tx.Caller())}, nil
}

// ExecuteBlock applies the block's transactions, in order, to a clone
// of the committed engine and stages the result for Commit.
func (app *App) ExecuteBlock(ctx context.Context, block bapitypes.FinalizedBlock) (bapitypes.BlockOutcome, error) {
	start := time.Now()

	app.mu.RLock()
	eng := app.current.Clone()
	app.mu.RUnlock()

	eng.SetHeight(block.Height)

	outcomes := make([]bapitypes.TxOutcome, len(block.Txs))
	for i, raw := range block.Txs {
		outcome, tx := applyTx(ctx, eng, uint32(i), raw)
		app.recordOutcome(tx, outcome)
		outcomes[i] = outcome
	}

	hash := bapitypes.AppHash(eng.Digest())
	app.staged = eng

	app.metrics.IncBlocksExecuted()
	app.metrics.SetBlockTxs(len(block.Txs))
	app.metrics.ObserveBlockDuration(time.Since(start))
	app.log.Info("executed block",
		logging.Height(block.Height),
		logging.Count(len(block.Txs)))

	return bapitypes.BlockOutcome{TxOutcomes: outcomes, AppHash: hash}, nil
}

// Commit makes the staged engine current and persists its snapshot.
// The returned retain height tells the consensus engine how far back
// this node still answers.
func (app *App) Commit(_ context.Context) (bapitypes.CommitResult, error) {
	start := time.Now()

	app.mu.Lock()
	app.current = app.staged
	app.staged = nil
	snap := app.current.Snapshot()
	app.mu.Unlock()

	if err := app.store.SaveSnapshot(snap); err != nil {
		return bapitypes.CommitResult{}, fmt.Errorf("saving snapshot at height %d: %w", snap.Height, err)
	}
	app.metrics.IncSnapshotsSaved()

	var retain uint64
	if app.retainBlocks > 0 && snap.Height > app.retainBlocks {
		retain = snap.Height - app.retainBlocks
		pruned, err := app.store.Prune(retain)
		if err != nil {
			return bapitypes.CommitResult{}, fmt.Errorf("pruning below height %d: %w", retain, err)
		}
		if pruned > 0 {
			app.metrics.IncSnapshotsPruned(pruned)
		}
	}

	app.metrics.SetBlockHeight(snap.Height)
	app.metrics.SetClaimsPending(app.current.PendingClaims())
	app.metrics.SetTotalProcessed(snap.TotalProcessed)
	app.metrics.SetTotalDisbursed(uint64(snap.TotalDisbursed))
	app.metrics.ObserveCommitDuration(time.Since(start))
	app.log.Info("committed state", logging.Height(snap.Height))

	return bapitypes.CommitResult{RetainHeight: retain}, nil
}

// recordOutcome feeds the per-transaction metrics. tx is nil when the
// transaction did not decode.
func (app *App) recordOutcome(tx *types.Tx, outcome bapitypes.TxOutcome) {
	kind := "malformed"
	if tx != nil {
		kind = tx.Kind()
	}
	if !outcome.OK() {
		app.metrics.IncTxsFailed(kind, types.Code(outcome.Code).String())
		app.log.Debug("transaction failed",
			logging.Kind(kind),
			logging.CodeAttr(types.Code(outcome.Code)),
			"info", outcome.Info)
		return
	}
	app.metrics.IncTxsExecuted(kind)
	switch {
	case tx.Submit != nil:
		app.metrics.IncClaimsSubmitted()
		app.metrics.ObserveClaimAmount(uint64(tx.Submit.Amount))
	case tx.Process != nil:
		app.metrics.IncClaimsApproved()
	case tx.Reject != nil:
		app.metrics.IncClaimsRejected()
	}
}

// outcomeCode extracts the domain code from an engine error. Engine
// errors are always coded; anything else reads as a malformed tx.
func outcomeCode(err error) uint32 {
	if code, ok := subsidy.CodeOf(err); ok {
		return uint32(code)
	}
	return uint32(types.CodeInvalidTx)
}
