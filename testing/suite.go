package subsidytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/engine"
	"github.com/blockberries/subsidy/types"
)

// Factory builds a fresh engine for one suite case.
type Factory func(t *testing.T, gen types.GenesisState, collab subsidy.Collaborators) *engine.Engine

// RunEngineSuite runs the claim lifecycle behavior suite against
// engines produced by the factory. It covers the full validation
// order, the admin gate, the cooldown and blacklist rules, audit
// strictness, and the terminal state machine.
//
// The factory must return a fresh engine for each call.
func RunEngineSuite(t *testing.T, factory Factory) {
	t.Helper()

	newHarness := func(t *testing.T) *Harness {
		t.Helper()
		m := NewMocks()
		eng := factory(t, types.GenesisState{Admin: DefaultAdmin}, m.Collaborators())
		eng.SetHeight(1)
		return Wrap(t, eng, m)
	}
	ctx := context.Background()

	t.Run("happy_path", func(t *testing.T) {
		h := newHarness(t)
		h.Advance(10)

		id := h.MustSubmit("farmer-1", DefaultAmount, DefaultPeriod)
		if id != 1 {
			t.Errorf("first claim id = %d, want 1", id)
		}
		c := h.Claim(id)
		if c.Status != types.StatusPending || c.SubmittedAt != 10 {
			t.Errorf("claim = %+v", c)
		}
		if p, _ := h.Engine.GetProof(id); p.Verified {
			t.Error("fresh proof must be unverified")
		}

		h.MustVerify(id)
		h.MustProcess(id)

		c = h.Claim(id)
		if c.Status != types.StatusApproved || c.Notes != "ok" {
			t.Errorf("claim after process = %+v", c)
		}
		rec, ok := h.Engine.GetRecord("farmer-1", DefaultPeriod)
		if !ok {
			t.Fatal("record missing after process")
		}
		if rec.ClaimCount != 1 || rec.LastClaimBlock != 10 || rec.TotalDisbursed != DefaultAmount || rec.Blacklisted {
			t.Errorf("record = %+v", rec)
		}
		if h.Engine.TotalProcessed() != 1 || h.Engine.TotalDisbursed() != DefaultAmount {
			t.Errorf("totals = %d/%d", h.Engine.TotalProcessed(), h.Engine.TotalDisbursed())
		}
		if h.Engine.CanClaim("farmer-1", DefaultPeriod) {
			t.Error("farmer must be in cooldown right after an approved claim")
		}

		events := h.Mocks.Audit.Events()
		if len(events) != 2 {
			t.Fatalf("audit events = %d, want 2", len(events))
		}
		if events[0].Status != types.EventSubmitted || events[1].Status != types.EventApproved {
			t.Errorf("audit order = %q, %q", events[0].Status, events[1].Status)
		}
		if events[1].Farmer != "farmer-1" || events[1].Amount != DefaultAmount {
			t.Errorf("approved event = %+v", events[1])
		}
	})

	t.Run("sequential_claim_ids", func(t *testing.T) {
		h := newHarness(t)
		for want := types.ClaimID(1); want <= 3; want++ {
			farmer := types.FarmerID(fmt.Sprintf("farmer-%d", want))
			if id := h.MustSubmit(farmer, 100, DefaultPeriod); id != want {
				t.Errorf("claim id = %d, want %d", id, want)
			}
		}
	})

	t.Run("amount_boundary", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.Engine.Submit(ctx, "farmer-1", 0, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeInvalidAmount)

		h.MustSubmit("farmer-1", types.MaxClaimAmount, DefaultPeriod)

		_, err = h.Engine.Submit(ctx, "farmer-2", types.MaxClaimAmount+1, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeInvalidAmount)
	})

	t.Run("metadata_bound", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, make([]byte, types.MaxMetadataLen+1), ProofHash(1))
		h.RequireCode(err, types.CodeInvalidMetadata)

		if _, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, make([]byte, types.MaxMetadataLen), ProofHash(1)); err != nil {
			t.Errorf("metadata at the cap must pass: %v", err)
		}
	})

	t.Run("period_window", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.Engine.Submit(ctx, "farmer-1", 100, types.MinPeriod-1, nil, ProofHash(1))
		h.RequireCode(err, types.CodeClaimPeriodExpired)

		_, err = h.Engine.Submit(ctx, "farmer-1", 100, types.MaxPeriod+1, nil, ProofHash(1))
		h.RequireCode(err, types.CodeClaimPeriodExpired)

		h.MustSubmit("farmer-1", 100, types.MinPeriod)
		h.MustSubmit("farmer-2", 100, types.MaxPeriod)
	})

	t.Run("proof_hash_length", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, make([]byte, 31))
		h.RequireCode(err, types.CodeInvalidProof)
	})

	t.Run("pause_gate", func(t *testing.T) {
		h := newHarness(t)

		h.RequireCode(h.Engine.Pause("mallory"), types.CodeNotAuthorized)

		if err := h.Engine.Pause(DefaultAdmin); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		if !h.Engine.Paused() {
			t.Fatal("engine must report paused")
		}
		_, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeContractPaused)

		if err := h.Engine.Unpause(DefaultAdmin); err != nil {
			t.Fatalf("Unpause failed: %v", err)
		}
		h.MustSubmit("farmer-1", 100, DefaultPeriod)
	})

	t.Run("genesis_paused", func(t *testing.T) {
		m := NewMocks()
		eng := factory(t, types.GenesisState{Admin: DefaultAdmin, Paused: true}, m.Collaborators())
		eng.SetHeight(1)
		h := Wrap(t, eng, m)

		_, err := eng.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeContractPaused)
	})

	t.Run("cooldown_window", func(t *testing.T) {
		h := newHarness(t)
		h.MustApprove("farmer-1", 100, DefaultPeriod)

		_, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeAlreadyClaimed)

		// Exactly at the boundary the cooldown still binds.
		h.Advance(1 + types.ClaimCooldown)
		_, err = h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeAlreadyClaimed)
		if h.Engine.CanClaim("farmer-1", DefaultPeriod) {
			t.Error("CanClaim must agree with submit at the boundary")
		}

		// One block past the boundary it clears.
		h.Advance(2 + types.ClaimCooldown)
		if !h.Engine.CanClaim("farmer-1", DefaultPeriod) {
			t.Error("cooldown must clear one block past the boundary")
		}
		h.MustSubmit("farmer-1", 100, DefaultPeriod)

		// A different period was never in cooldown.
		if !h.Engine.CanClaim("farmer-1", DefaultPeriod+1) {
			t.Error("cooldown must be scoped to the period")
		}
	})

	t.Run("submit_does_not_start_cooldown", func(t *testing.T) {
		h := newHarness(t)
		h.MustSubmit("farmer-1", 100, DefaultPeriod)

		// Only processing writes the (farmer, period) record; a pending
		// claim leaves the farmer free to submit again.
		if _, ok := h.Engine.GetRecord("farmer-1", DefaultPeriod); ok {
			t.Error("submit must not create a record")
		}
		h.MustSubmit("farmer-1", 100, DefaultPeriod)
	})

	t.Run("claim_budget", func(t *testing.T) {
		h := newHarness(t)
		height := uint64(1)
		for i := uint32(0); i < types.MaxClaimsPerFarmer; i++ {
			h.Advance(height)
			h.MustApprove("farmer-1", 100, DefaultPeriod)
			height += types.ClaimCooldown + 1
		}

		h.Advance(height + 10*types.ClaimCooldown)
		_, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeAlreadyClaimed)
	})

	t.Run("blacklist_absolute", func(t *testing.T) {
		h := newHarness(t)
		h.MustApprove("farmer-1", 100, DefaultPeriod)

		if err := h.Engine.Blacklist(DefaultAdmin, "farmer-1", DefaultPeriod); err != nil {
			t.Fatalf("Blacklist failed: %v", err)
		}
		rec, _ := h.Engine.GetRecord("farmer-1", DefaultPeriod)
		if !rec.Blacklisted || rec.ClaimCount != 1 || rec.TotalDisbursed != 100 {
			t.Errorf("blacklist must preserve record fields: %+v", rec)
		}

		h.Advance(1_000_000)
		_, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeAlreadyClaimed)
		if h.Engine.CanClaim("farmer-1", DefaultPeriod) {
			t.Error("blacklisted farmer must not pass CanClaim")
		}

		// The blacklist is scoped to the period.
		h.MustSubmit("farmer-1", 100, DefaultPeriod+1)
	})

	t.Run("blacklist_creates_record", func(t *testing.T) {
		h := newHarness(t)
		if err := h.Engine.Blacklist(DefaultAdmin, "farmer-9", DefaultPeriod); err != nil {
			t.Fatalf("Blacklist failed: %v", err)
		}
		rec, ok := h.Engine.GetRecord("farmer-9", DefaultPeriod)
		if !ok || !rec.Blacklisted || rec.ClaimCount != 0 {
			t.Errorf("record = %+v, ok = %v", rec, ok)
		}

		h.RequireCode(h.Engine.Blacklist(DefaultAdmin, "farmer-9", 999_999), types.CodeClaimPeriodExpired)
	})

	t.Run("admin_gate", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustSubmit("farmer-1", 100, DefaultPeriod)

		h.RequireCode(h.Engine.VerifyProof("mallory", id, true), types.CodeNotAuthorized)
		h.RequireCode(h.Engine.Process(ctx, "mallory", id, ""), types.CodeNotAuthorized)
		h.RequireCode(h.Engine.Reject(ctx, "mallory", id, "no"), types.CodeNotAuthorized)
		// The admin gate is checked before the period window.
		h.RequireCode(h.Engine.Blacklist("mallory", "farmer-1", 999_999), types.CodeNotAuthorized)
		h.RequireCode(h.Engine.Pause("mallory"), types.CodeNotAuthorized)
		h.RequireCode(h.Engine.Unpause("mallory"), types.CodeNotAuthorized)
		h.RequireCode(h.Engine.SetAdmin("mallory", "mallory"), types.CodeNotAuthorized)
	})

	t.Run("adminless_engine", func(t *testing.T) {
		m := NewMocks()
		eng := factory(t, types.GenesisState{}, m.Collaborators())
		eng.SetHeight(1)
		h := Wrap(t, eng, m)

		// The null identity never authenticates, even against a null
		// admin register.
		h.RequireCode(eng.Pause(""), types.CodeNotAuthorized)
		h.RequireCode(eng.Pause("anyone"), types.CodeNotAuthorized)
	})

	t.Run("admin_transfer", func(t *testing.T) {
		h := newHarness(t)

		h.RequireCode(h.Engine.SetAdmin(DefaultAdmin, types.NullFarmer), types.CodeInvalidAdmin)

		if err := h.Engine.SetAdmin(DefaultAdmin, "admin-2"); err != nil {
			t.Fatalf("SetAdmin failed: %v", err)
		}
		if h.Engine.Admin() != "admin-2" {
			t.Errorf("admin = %q", h.Engine.Admin())
		}
		h.RequireCode(h.Engine.Pause(DefaultAdmin), types.CodeNotAuthorized)
		if err := h.Engine.Pause("admin-2"); err != nil {
			t.Errorf("new admin must be able to pause: %v", err)
		}
	})

	t.Run("unknown_claim_refs", func(t *testing.T) {
		h := newHarness(t)
		h.RequireCode(h.Engine.VerifyProof(DefaultAdmin, 99, true), types.CodeInvalidClaimID)
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, 99, ""), types.CodeInvalidClaimID)
		h.RequireCode(h.Engine.Reject(ctx, DefaultAdmin, 99, "no"), types.CodeInvalidClaimID)
	})

	t.Run("unverified_proof", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustSubmit("farmer-1", 100, DefaultPeriod)

		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeInvalidProof)

		// An explicit false verdict leaves the proof unverified.
		if err := h.Engine.VerifyProof(DefaultAdmin, id, false); err != nil {
			t.Fatalf("VerifyProof failed: %v", err)
		}
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeInvalidProof)
	})

	t.Run("double_process", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustApprove("farmer-1", 100, DefaultPeriod)

		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, "again"), types.CodeAlreadyClaimed)
		if h.Engine.TotalProcessed() != 1 || h.Engine.TotalDisbursed() != 100 {
			t.Errorf("totals moved on a failed re-process: %d/%d",
				h.Engine.TotalProcessed(), h.Engine.TotalDisbursed())
		}
		if c := h.Claim(id); c.Notes != "ok" {
			t.Errorf("notes must not change on a failed re-process: %q", c.Notes)
		}
	})

	t.Run("terminal_rejection", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustSubmit("farmer-1", 100, DefaultPeriod)
		h.MustReject(id, "incomplete documents")

		if c := h.Claim(id); c.Status != types.StatusRejected || c.Notes != "incomplete documents" {
			t.Errorf("claim = %+v", c)
		}
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeAlreadyClaimed)
		h.RequireCode(h.Engine.Reject(ctx, DefaultAdmin, id, "again"), types.CodeAlreadyClaimed)

		// Proof re-verification stays possible after rejection.
		if err := h.Engine.VerifyProof(DefaultAdmin, id, true); err != nil {
			t.Errorf("VerifyProof after rejection failed: %v", err)
		}

		events := h.Mocks.Audit.Events()
		if len(events) != 2 || events[1].Status != types.EventRejected {
			t.Errorf("audit events = %+v", events)
		}
	})

	t.Run("notes_bound", func(t *testing.T) {
		h := newHarness(t)
		long := strings.Repeat("x", types.MaxNotesLen+1)

		id := h.MustSubmit("farmer-1", 100, DefaultPeriod)
		h.MustVerify(id)
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, long), types.CodeInvalidMetadata)
		h.RequireCode(h.Engine.Reject(ctx, DefaultAdmin, id, long), types.CodeInvalidMetadata)
		if c := h.Claim(id); c.Status != types.StatusPending {
			t.Errorf("claim must stay pending, got %s", c.Status)
		}
	})

	t.Run("registry_gate", func(t *testing.T) {
		h := newHarness(t)

		h.Mocks.Registry.IsRegisteredFn = func(context.Context, types.FarmerID) (bool, error) {
			return false, nil
		}
		_, err := h.Engine.Submit(ctx, "stranger", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeInvalidFarmer)

		// An uncoded registry failure surfaces as InvalidFarmer with the
		// cause retained.
		cause := errors.New("registry unreachable")
		h.Mocks.Registry.IsRegisteredFn = func(context.Context, types.FarmerID) (bool, error) {
			return false, cause
		}
		_, err = h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeInvalidFarmer)
		if !errors.Is(err, cause) {
			t.Error("registry cause must survive wrapping")
		}

		// A coded registry failure propagates untranslated.
		h.Mocks.Registry.IsRegisteredFn = func(context.Context, types.FarmerID) (bool, error) {
			return false, subsidy.NewError(types.CodeVerificationFailed, "registry rejected the lookup")
		}
		_, err = h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeVerificationFailed)
	})

	t.Run("eligibility_gate", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustSubmit("farmer-1", 100, DefaultPeriod)
		h.MustVerify(id)

		h.Mocks.Eligibility.VerifyEligibilityFn = func(context.Context, types.FarmerID, types.Period) (bool, error) {
			return false, nil
		}
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeVerificationFailed)

		h.Mocks.Eligibility.VerifyEligibilityFn = func(context.Context, types.FarmerID, types.Period) (bool, error) {
			return false, errors.New("verifier down")
		}
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeVerificationFailed)
		if c := h.Claim(id); c.Status != types.StatusPending {
			t.Errorf("claim must stay pending, got %s", c.Status)
		}
	})

	t.Run("insufficient_funds", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustSubmit("farmer-1", 500, DefaultPeriod)
		h.MustVerify(id)

		h.Mocks.Pool.BalanceFn = func(context.Context) (types.Amount, error) {
			return 499, nil
		}
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeInsufficientFunds)

		// An exact balance covers the claim.
		h.Mocks.Pool.BalanceFn = func(context.Context) (types.Amount, error) {
			return 500, nil
		}
		h.MustProcess(id)
	})

	t.Run("disbursement_declined", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustSubmit("farmer-1", 100, DefaultPeriod)
		h.MustVerify(id)

		h.Mocks.Pool.DisburseFn = func(context.Context, types.FarmerID, types.Amount) (bool, error) {
			return false, nil
		}
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeVerificationFailed)
		if c := h.Claim(id); c.Status != types.StatusPending {
			t.Errorf("claim must stay pending, got %s", c.Status)
		}
		if h.Engine.TotalDisbursed() != 0 {
			t.Errorf("nothing may be recorded as disbursed, got %d", h.Engine.TotalDisbursed())
		}
	})

	t.Run("audit_failure_aborts_submit", func(t *testing.T) {
		h := newHarness(t)
		h.Mocks.Audit.LogEventFn = func(context.Context, types.FarmerID, string, types.Amount, []byte) error {
			return errors.New("audit sink down")
		}

		_, err := h.Engine.Submit(ctx, "farmer-1", 100, DefaultPeriod, nil, ProofHash(1))
		h.RequireCode(err, types.CodeVerificationFailed)
		if _, ok := h.Engine.GetClaim(1); ok {
			t.Error("no claim may exist after an aborted submit")
		}
		if h.Engine.NextClaimID() != 1 {
			t.Errorf("id counter moved: %d", h.Engine.NextClaimID())
		}
	})

	t.Run("audit_failure_aborts_process", func(t *testing.T) {
		h := newHarness(t)
		id := h.MustSubmit("farmer-1", 100, DefaultPeriod)
		h.MustVerify(id)

		h.Mocks.Audit.LogEventFn = func(_ context.Context, _ types.FarmerID, status string, _ types.Amount, _ []byte) error {
			if status == types.EventApproved {
				return errors.New("audit sink down")
			}
			return nil
		}
		h.RequireCode(h.Engine.Process(ctx, DefaultAdmin, id, ""), types.CodeVerificationFailed)
		if c := h.Claim(id); c.Status != types.StatusPending {
			t.Errorf("claim must stay pending, got %s", c.Status)
		}
		if h.Engine.TotalProcessed() != 0 {
			t.Error("totals must not move on an aborted process")
		}

		// Once the audit sink recovers the same claim processes cleanly.
		h.Mocks.Audit.LogEventFn = nil
		h.MustProcess(id)
	})
}
