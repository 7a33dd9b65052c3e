package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/blockberries/bapi"
	bapitest "github.com/blockberries/bapi/testing"
	bapitypes "github.com/blockberries/bapi/types"
	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/app"
	"github.com/blockberries/subsidy/local"
	"github.com/blockberries/subsidy/store"
	"github.com/blockberries/subsidy/types"
)

const (
	admin  = types.FarmerID("admin")
	alice  = types.FarmerID("alice")
	bob    = types.FarmerID("bob")
	period = types.Period(202501)
)

var proofHash = bytes.Repeat([]byte{0xaa}, types.ProofHashLen)

// testEnv bundles an app with the fakes behind it so tests can reach
// through to the pool and audit trail.
type testEnv struct {
	app   *app.App
	store store.Store
	pool  *local.Pool
	audit *local.AuditLog
}

func newTestEnv(t *testing.T, opts ...app.Option) *testEnv {
	t.Helper()
	pool := local.NewPool(10_000)
	audit := local.NewAuditLog()
	st := store.NewMemoryStore()
	a, err := app.New(st, subsidy.Collaborators{
		Registry:    local.NewRegistry(alice, bob),
		Eligibility: local.NewEligibility(true),
		Pool:        pool,
		Audit:       audit,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{app: a, store: st, pool: pool, audit: audit}
}

// adminGenesis is the default genesis doc with an admin in AppState.
func adminGenesis(t *testing.T) bapitypes.GenesisDoc {
	t.Helper()
	doc := bapitest.DefaultGenesis()
	appState, err := types.GenesisState{Admin: admin}.AppStateBytes()
	if err != nil {
		t.Fatalf("AppStateBytes: %v", err)
	}
	doc.AppState = appState
	return doc
}

func TestApp_Compliance(t *testing.T) {
	bapitest.RunComplianceSuite(t, func() bapi.Lifecycle {
		return newTestEnv(t).app
	})
}

func TestApp_Capabilities(t *testing.T) {
	h := bapitest.NewHarness(t, newTestEnv(t).app)
	resp := h.GenesisDefault()

	if !resp.Capabilities.Has(bapitypes.CapProposalControl) {
		t.Error("expected CapProposalControl")
	}
	if !resp.Capabilities.Has(bapitypes.CapStateSync) {
		t.Error("expected CapStateSync")
	}
	if !resp.Capabilities.Has(bapitypes.CapSimulation) {
		t.Error("expected CapSimulation")
	}
	if resp.Capabilities.Has(bapitypes.CapVoteExtensions) {
		t.Error("vote extensions should not be declared")
	}
}

func TestApp_GenesisChainIDMismatch(t *testing.T) {
	env := newTestEnv(t, app.WithChainID("subsidy-mainnet-1"))
	doc := bapitest.DefaultGenesis() // chain id "test-chain"
	_, err := env.app.Handshake(context.Background(), bapitypes.HandshakeRequest{Genesis: &doc})
	if err == nil {
		t.Fatal("expected chain id mismatch error")
	}
}

func TestApp_ClaimLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	// Submit.
	outcome := h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SubmitTx(alice, 600, period, []byte("harvest docs"), proofHash)))
	sub := outcome.TxOutcomes[0]
	if !sub.OK() {
		t.Fatalf("submit failed: %s", sub.Info)
	}
	if !bytes.Equal(sub.Data, app.ClaimKey(1)) {
		t.Errorf("expected claim id 1 in outcome data, got %x", sub.Data)
	}
	if len(sub.Events) != 1 || sub.Events[0].Kind != "submit" {
		t.Fatalf("expected one submit event, got %+v", sub.Events)
	}

	// Verify the proof and process, in one block.
	outcome = h.ExecuteAndCommit(bapitest.MakeBlock(2,
		types.VerifyProofTx(admin, 1, true),
		types.ProcessTx(admin, 1, "approved after inspection")))
	for i, txo := range outcome.TxOutcomes {
		if !txo.OK() {
			t.Fatalf("tx %d failed: code=%d info=%s", i, txo.Code, txo.Info)
		}
	}
	if outcome.TxOutcomes[1].Events[0].Kind != "process" {
		t.Errorf("expected process event, got %q", outcome.TxOutcomes[1].Events[0].Kind)
	}

	// Committed claim is approved with notes.
	result := h.Query(app.PathClaim, app.ClaimKey(1))
	if result.Code != 0 {
		t.Fatalf("query /claim failed: %s", result.Info)
	}
	var claim types.Claim
	if err := cramberry.Unmarshal(result.Value, &claim); err != nil {
		t.Fatalf("decoding claim: %v", err)
	}
	if claim.Status != types.StatusApproved {
		t.Errorf("expected approved claim, got %s", claim.Status)
	}
	if claim.Notes != "approved after inspection" {
		t.Errorf("unexpected notes %q", claim.Notes)
	}

	// Stats reflect the disbursement.
	result = h.Query(app.PathStats, nil)
	stats, err := types.DecodeStats(result.Value)
	if err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.TotalProcessed != 1 || stats.TotalDisbursed != 600 {
		t.Errorf("stats = %+v, want 1 processed / 600 disbursed", stats)
	}
	if stats.PendingClaims != 0 {
		t.Errorf("expected no pending claims, got %d", stats.PendingClaims)
	}

	// The pool paid once, the audit trail has submit + approve.
	if bal, _ := env.pool.Balance(context.Background()); bal != 9_400 {
		t.Errorf("pool balance = %d, want 9400", bal)
	}
	if n := len(env.audit.Entries()); n != 2 {
		t.Errorf("audit entries = %d, want 2", n)
	}
}

func TestApp_SubmitUnregisteredFarmer(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	outcome := h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SubmitTx("mallory", 600, period, nil, proofHash)))
	if got := outcome.TxOutcomes[0].Code; got != uint32(types.CodeInvalidFarmer) {
		t.Errorf("code = %d, want %d", got, types.CodeInvalidFarmer)
	}
	// Nothing was written.
	result := h.Query(app.PathClaim, app.ClaimKey(1))
	if result.Code != uint32(types.CodeInvalidClaimID) {
		t.Errorf("expected no claim, got code %d", result.Code)
	}
}

func TestApp_RejectFlow(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SubmitTx(alice, 600, period, nil, proofHash)))
	outcome := h.ExecuteAndCommit(bapitest.MakeBlock(2,
		types.RejectTx(admin, 1, "duplicate paperwork")))
	if !outcome.TxOutcomes[0].OK() {
		t.Fatalf("reject failed: %s", outcome.TxOutcomes[0].Info)
	}

	result := h.Query(app.PathClaim, app.ClaimKey(1))
	var claim types.Claim
	if err := cramberry.Unmarshal(result.Value, &claim); err != nil {
		t.Fatalf("decoding claim: %v", err)
	}
	if claim.Status != types.StatusRejected {
		t.Errorf("expected rejected claim, got %s", claim.Status)
	}
	// Rejection reaches the audit trail but not the pool.
	if bal, _ := env.pool.Balance(context.Background()); bal != 10_000 {
		t.Errorf("pool balance = %d, want untouched 10000", bal)
	}
	if n := len(env.audit.Entries()); n != 2 {
		t.Errorf("audit entries = %d, want submit + reject", n)
	}
}

func TestApp_CheckTx(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	// A well-formed submit is admitted at claim priority.
	v := h.CheckTx(types.SubmitTx(alice, 600, period, nil, proofHash))
	if !v.Accepted() {
		t.Fatalf("submit rejected: code=%d info=%s", v.Code, v.Info)
	}
	if v.Priority != 5 || v.Sender != string(alice) {
		t.Errorf("verdict = %+v, want priority 5 sender alice", v)
	}

	// Admin operations outrank claims.
	v = h.CheckTx(types.PauseTx(admin, true))
	if !v.Accepted() || v.Priority != 10 {
		t.Errorf("pause verdict = %+v, want accepted at priority 10", v)
	}

	// Garbage never reaches the mempool.
	v = h.CheckTx(bapitypes.Tx{0xff, 0x00, 0xba, 0xad})
	if v.Code != uint32(types.CodeInvalidTx) {
		t.Errorf("garbage code = %d, want %d", v.Code, types.CodeInvalidTx)
	}

	// Stateless bounds run at the gate.
	v = h.CheckTx(types.SubmitTx(alice, types.MaxClaimAmount+1, period, nil, proofHash))
	if v.Code != uint32(types.CodeInvalidAmount) {
		t.Errorf("oversize amount code = %d, want %d", v.Code, types.CodeInvalidAmount)
	}
	v = h.CheckTx(types.SubmitTx(alice, 600, period, nil, []byte("short")))
	if v.Code != uint32(types.CodeInvalidProof) {
		t.Errorf("bad proof code = %d, want %d", v.Code, types.CodeInvalidProof)
	}

	// After a committed pause, submits stop at the gate too.
	h.ExecuteAndCommit(bapitest.MakeBlock(1, types.PauseTx(admin, true)))
	v = h.RecheckTx(types.SubmitTx(alice, 600, period, nil, proofHash))
	if v.Code != uint32(types.CodeContractPaused) {
		t.Errorf("paused code = %d, want %d", v.Code, types.CodeContractPaused)
	}
}

func TestApp_PauseAppliesWithinBlock(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	// Pause lands before the submit in the same block.
	outcome := h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.PauseTx(admin, true),
		types.SubmitTx(alice, 600, period, nil, proofHash)))
	if !outcome.TxOutcomes[0].OK() {
		t.Fatalf("pause failed: %s", outcome.TxOutcomes[0].Info)
	}
	if got := outcome.TxOutcomes[1].Code; got != uint32(types.CodeContractPaused) {
		t.Errorf("submit code = %d, want %d", got, types.CodeContractPaused)
	}

	result := h.Query(app.PathPaused, nil)
	if !bytes.Equal(result.Value, []byte{1}) {
		t.Errorf("expected paused flag set, got %x", result.Value)
	}
}

func TestApp_AdminHandoff(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	outcome := h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SetAdminTx(admin, bob),
		types.PauseTx(admin, true), // old admin fails immediately
		types.PauseTx(bob, true),
	))
	if !outcome.TxOutcomes[0].OK() {
		t.Fatalf("handoff failed: %s", outcome.TxOutcomes[0].Info)
	}
	if got := outcome.TxOutcomes[1].Code; got != uint32(types.CodeNotAuthorized) {
		t.Errorf("old admin code = %d, want %d", got, types.CodeNotAuthorized)
	}
	if !outcome.TxOutcomes[2].OK() {
		t.Errorf("new admin pause failed: %s", outcome.TxOutcomes[2].Info)
	}

	result := h.Query(app.PathAdmin, nil)
	if string(result.Value) != string(bob) {
		t.Errorf("admin = %q, want %q", result.Value, bob)
	}
}

func TestApp_Queries(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SubmitTx(alice, 600, period, nil, proofHash),
		types.BlacklistTx(admin, bob, period)))

	// Malformed keys fail with code 1.
	result := h.Query(app.PathClaim, []byte("xx"))
	if result.Code != uint32(types.CodeInvalidTx) {
		t.Errorf("malformed key code = %d, want 1", result.Code)
	}
	if result.Height != 1 {
		t.Errorf("height = %d, want 1", result.Height)
	}

	// Unknown claim ids report the domain code.
	result = h.Query(app.PathProof, app.ClaimKey(99))
	if result.Code != uint32(types.CodeInvalidClaimID) {
		t.Errorf("unknown claim code = %d, want %d", result.Code, types.CodeInvalidClaimID)
	}

	// The proof rides with the claim.
	result = h.Query(app.PathProof, app.ClaimKey(1))
	var proof types.ClaimProof
	if err := cramberry.Unmarshal(result.Value, &proof); err != nil {
		t.Fatalf("decoding proof: %v", err)
	}
	if proof.Verified || !bytes.Equal(proof.Hash[:], proofHash) {
		t.Errorf("unexpected proof %+v", proof)
	}

	// A farmer with no history reads as the zero record.
	result = h.Query(app.PathRecord, app.RecordKey(alice, period))
	var rec types.FarmerPeriodRecord
	if err := cramberry.Unmarshal(result.Value, &rec); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if rec.ClaimCount != 0 || rec.Blacklisted {
		t.Errorf("unexpected record %+v", rec)
	}

	// Blacklisting flips /canclaim.
	result = h.Query(app.PathCanClaim, app.RecordKey(alice, period))
	if !bytes.Equal(result.Value, []byte{1}) {
		t.Errorf("alice should be claimable, got %x", result.Value)
	}
	result = h.Query(app.PathCanClaim, app.RecordKey(bob, period))
	if !bytes.Equal(result.Value, []byte{0}) {
		t.Errorf("bob is blacklisted, got %x", result.Value)
	}

	// Unknown paths fail with code 1 and still carry the height.
	result = h.Query("/nope", nil)
	if result.Code != uint32(types.CodeInvalidTx) || result.Height != 1 {
		t.Errorf("unknown path result = %+v", result)
	}
}

func TestApp_RestartRestoresState(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SubmitTx(alice, 600, period, nil, proofHash)))
	last := h.ExecuteAndCommit(bapitest.MakeBlock(2,
		types.VerifyProofTx(admin, 1, true)))

	// A new app over the same store picks up where the old one left.
	restarted, err := app.New(env.store, subsidy.Collaborators{
		Registry:    local.NewRegistry(alice, bob),
		Eligibility: local.NewEligibility(true),
		Pool:        env.pool,
		Audit:       env.audit,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h2 := bapitest.NewHarness(t, restarted)
	resp := h2.Restart(bapitypes.BlockID{Height: 2})

	if resp.LastBlock == nil || resp.LastBlock.Height != 2 {
		t.Fatalf("restart reported %+v, want height 2", resp.LastBlock)
	}
	if resp.AppHash == nil || *resp.AppHash != last.AppHash {
		t.Errorf("restart app hash does not match last committed block")
	}

	result := h2.Query(app.PathClaim, app.ClaimKey(1))
	if result.Code != 0 {
		t.Errorf("restored state lost claim 1: %s", result.Info)
	}
}

func TestApp_RetainBlocksPrunes(t *testing.T) {
	env := newTestEnv(t, app.WithRetainBlocks(2))
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	var result bapitypes.CommitResult
	for i := uint64(1); i <= 5; i++ {
		h.ExecuteBlock(bapitest.MakeEmptyBlock(i))
		result = h.Commit()
	}
	if result.RetainHeight != 3 {
		t.Errorf("retain height = %d, want 3", result.RetainHeight)
	}
	if base := env.store.Base(); base != 3 {
		t.Errorf("store base = %d, want 3", base)
	}
	if height := env.store.Height(); height != 5 {
		t.Errorf("store height = %d, want 5", height)
	}
}

func TestApp_Simulate(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))
	h.ExecuteAndCommit(bapitest.MakeEmptyBlock(1))

	outcome, err := env.app.Simulate(context.Background(),
		types.SubmitTx(alice, 600, period, nil, proofHash))
	if err != nil {
		t.Fatalf("simulate error: %v", err)
	}
	if !outcome.OK() {
		t.Fatalf("simulate failed: %s", outcome.Info)
	}

	// Committed state did not move.
	result := h.Query(app.PathStats, nil)
	stats, err := types.DecodeStats(result.Value)
	if err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.NextClaimID != 1 {
		t.Errorf("simulation mutated state: next claim id %d", stats.NextClaimID)
	}
}

func TestApp_BuildProposal(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	good := types.SubmitTx(alice, 600, period, nil, proofHash)
	pause := types.PauseTx(admin, true)

	built, err := env.app.BuildProposal(context.Background(), bapitypes.ProposalContext{
		Height:     1,
		MempoolTxs: []bapitypes.Tx{good, {0xde, 0xad}, pause},
		MaxTxBytes: uint64(len(good) + len(pause)),
	})
	if err != nil {
		t.Fatalf("BuildProposal: %v", err)
	}
	if len(built.Txs) != 2 {
		t.Fatalf("expected 2 txs in proposal, got %d", len(built.Txs))
	}
	if !bytes.Equal(built.Txs[0], good) || !bytes.Equal(built.Txs[1], pause) {
		t.Error("proposal reordered or replaced transactions")
	}

	// A tight budget drops the tail.
	built, err = env.app.BuildProposal(context.Background(), bapitypes.ProposalContext{
		Height:     1,
		MempoolTxs: []bapitypes.Tx{good, pause},
		MaxTxBytes: uint64(len(good)),
	})
	if err != nil {
		t.Fatalf("BuildProposal: %v", err)
	}
	if len(built.Txs) != 1 {
		t.Fatalf("expected 1 tx under budget, got %d", len(built.Txs))
	}

	verdict, err := env.app.VerifyProposal(context.Background(), bapitypes.ReceivedProposal{
		Height: 1,
		Txs:    []bapitypes.Tx{good, {0xde, 0xad}},
	})
	if err != nil {
		t.Fatalf("VerifyProposal: %v", err)
	}
	if verdict.Accept {
		t.Error("expected proposal with garbage tx to be rejected")
	}
}

func TestApp_StateSyncRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))

	h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SubmitTx(alice, 600, period, nil, proofHash)))
	last := h.ExecuteAndCommit(bapitest.MakeBlock(2,
		types.VerifyProofTx(admin, 1, true)))

	ctx := context.Background()

	descs, err := env.app.AvailableSnapshots(ctx)
	if err != nil {
		t.Fatalf("AvailableSnapshots: %v", err)
	}
	if len(descs) != 1 || descs[0].Height != 2 {
		t.Fatalf("descriptors = %+v, want one at height 2", descs)
	}

	ch, desc, err := env.app.ExportSnapshot(ctx, 2, descs[0].Format)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	var chunks []bapitypes.SnapshotChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	if uint32(len(chunks)) != desc.Chunks {
		t.Fatalf("exported %d chunks, descriptor says %d", len(chunks), desc.Chunks)
	}

	// Import into a fresh node.
	target := newTestEnv(t)
	feed := make(chan bapitypes.SnapshotChunk, len(chunks))
	for _, chunk := range chunks {
		feed <- chunk
	}
	close(feed)

	res, err := target.app.ImportSnapshot(ctx, *desc, feed)
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if res.Status != bapitypes.ImportOK {
		t.Fatalf("import status = %v, reason %s", res.Status, res.Reason)
	}
	if res.AppHash == nil || *res.AppHash != last.AppHash {
		t.Error("imported app hash does not match the source chain")
	}

	result, err := target.app.Query(ctx, bapitypes.StateQuery{Path: app.PathProof, Data: app.ClaimKey(1)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	var proof types.ClaimProof
	if err := cramberry.Unmarshal(result.Value, &proof); err != nil {
		t.Fatalf("decoding proof: %v", err)
	}
	if !proof.Verified {
		t.Error("imported state lost the proof verdict")
	}
}

func TestApp_ImportSnapshotRetriesAndRejects(t *testing.T) {
	env := newTestEnv(t)
	h := bapitest.NewHarness(t, env.app)
	h.Genesis(adminGenesis(t))
	h.ExecuteAndCommit(bapitest.MakeBlock(1,
		types.SubmitTx(alice, 600, period, nil, proofHash)))

	ctx := context.Background()
	ch, desc, err := env.app.ExportSnapshot(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	var chunks []bapitypes.SnapshotChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}

	// Missing chunks ask for a retry.
	target := newTestEnv(t)
	empty := make(chan bapitypes.SnapshotChunk)
	close(empty)
	res, err := target.app.ImportSnapshot(ctx, *desc, empty)
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if res.Status != bapitypes.ImportRetryChunks || len(res.RetryIndices) != len(chunks) {
		t.Errorf("result = %+v, want retry of all %d chunks", res, len(chunks))
	}

	// A corrupted chunk rejects the snapshot.
	bad := make(chan bapitypes.SnapshotChunk, len(chunks))
	for _, chunk := range chunks {
		data := append([]byte(nil), chunk.Data...)
		data[0] ^= 0xff
		bad <- bapitypes.SnapshotChunk{Index: chunk.Index, Data: data}
	}
	close(bad)
	res, err = target.app.ImportSnapshot(ctx, *desc, bad)
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if res.Status != bapitypes.ImportReject {
		t.Errorf("status = %v, want reject on hash mismatch", res.Status)
	}

	// Unknown formats are rejected outright.
	res, err = target.app.ImportSnapshot(ctx, bapitypes.SnapshotDescriptor{Format: 9}, empty)
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if res.Status != bapitypes.ImportReject {
		t.Errorf("status = %v, want reject on unknown format", res.Status)
	}
}

func TestApp_DeterministicAppHash(t *testing.T) {
	env1 := newTestEnv(t)
	env2 := newTestEnv(t)
	h1 := bapitest.NewHarness(t, env1.app)
	h2 := bapitest.NewHarness(t, env2.app)
	h1.Genesis(adminGenesis(t))
	h2.Genesis(adminGenesis(t))

	block := bapitest.MakeBlock(1,
		types.SubmitTx(alice, 600, period, []byte("docs"), proofHash),
		types.SubmitTx(bob, 400, period, nil, proofHash),
		types.BlacklistTx(admin, "mallory", period))

	o1 := h1.ExecuteAndCommit(block)
	o2 := h2.ExecuteAndCommit(block)
	if o1.AppHash != o2.AppHash {
		t.Errorf("non-deterministic: %x != %x", o1.AppHash, o2.AppHash)
	}
}
