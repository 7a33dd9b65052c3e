// Package quickstart runs the whole subsidy stack in one process:
// memory-backed collaborators, a memory store, the claim application,
// and an in-process BAPI connection standing in for the consensus
// engine. It is a worked example of driving the claim lifecycle end
// to end.
package quickstart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	bapilocal "github.com/blockberries/bapi/local"
	bapitypes "github.com/blockberries/bapi/types"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/app"
	"github.com/blockberries/subsidy/local"
	"github.com/blockberries/subsidy/store"
	"github.com/blockberries/subsidy/types"
)

// Scenario identities.
const (
	adminID  = types.FarmerID("gov-agency")
	farmerID = types.FarmerID("farmer-green")
	period   = types.Period(202501)
	chainID  = "subsidy-quickstart"
)

// Run drives one claim from submission to payout and writes a short
// narration of each step to w.
func Run(w io.Writer) error {
	ctx := context.Background()

	pool := local.NewPool(1_000_000)
	collab := subsidy.Collaborators{
		Registry:    local.NewRegistry(farmerID),
		Eligibility: local.NewEligibility(true),
		Pool:        pool,
		Audit:       local.NewAuditLog(),
	}

	application, err := app.New(store.NewMemoryStore(), collab, app.WithChainID(chainID))
	if err != nil {
		return err
	}
	conn := bapilocal.NewConnection(application)

	appState, err := types.GenesisState{Admin: adminID}.AppStateBytes()
	if err != nil {
		return err
	}
	genesis := &bapitypes.GenesisDoc{
		ChainID:     chainID,
		GenesisTime: bapitypes.TimeToTimestamp(time.Now().UTC()),
		AppState:    appState,
	}
	if _, err := conn.Handshake(ctx, bapitypes.HandshakeRequest{Genesis: genesis}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	fmt.Fprintf(w, "chain initialized, %s administers the fund\n", adminID)

	proof := bytes.Repeat([]byte{0x5a}, types.ProofHashLen)

	// Block 1: the farmer submits a claim.
	outcome, err := execute(ctx, conn, 1,
		types.SubmitTx(farmerID, 750, period, []byte("drought relief"), proof))
	if err != nil {
		return err
	}
	claimID, err := app.DecodeClaimKey(outcome.TxOutcomes[0].Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "claim %d submitted by %s for period %d\n", claimID, farmerID, period)

	// Block 2: the admin verifies the proof and approves the claim.
	if _, err := execute(ctx, conn, 2,
		types.VerifyProofTx(adminID, claimID, true),
		types.ProcessTx(adminID, claimID, "inspection passed")); err != nil {
		return err
	}
	fmt.Fprintf(w, "claim %d approved, funds disbursed\n", claimID)

	balance, err := pool.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "pool balance now %d\n", balance)

	res, err := conn.Query(ctx, bapitypes.StateQuery{Path: app.PathStats})
	if err != nil {
		return fmt.Errorf("querying stats: %w", err)
	}
	stats, err := types.DecodeStats(res.Value)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "height %d: %d processed, %d disbursed in total\n",
		stats.Height, stats.TotalProcessed, stats.TotalDisbursed)

	return nil
}

// execute finalizes one block with the given transactions and
// commits it, failing on the first failed transaction.
func execute(ctx context.Context, conn *bapilocal.Connection, height uint64, txs ...bapitypes.Tx) (bapitypes.BlockOutcome, error) {
	block := bapitypes.FinalizedBlock{
		Height: height,
		Time:   bapitypes.TimeToTimestamp(time.Now().UTC()),
		Txs:    txs,
	}
	outcome, err := conn.ExecuteBlock(ctx, block)
	if err != nil {
		return outcome, fmt.Errorf("executing block %d: %w", height, err)
	}
	for i, txo := range outcome.TxOutcomes {
		if !txo.OK() {
			return outcome, fmt.Errorf("block %d tx %d failed: code=%d info=%s",
				height, i, txo.Code, txo.Info)
		}
	}
	if _, err := conn.Commit(ctx); err != nil {
		return outcome, fmt.Errorf("committing block %d: %w", height, err)
	}
	return outcome, nil
}
