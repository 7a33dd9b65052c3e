// Package engine implements the subsidy claim state machine.
//
// An Engine owns one state instance and serializes every operation
// under a single mutex, reproducing the strictly ordered, atomic
// transaction semantics of the ledger it runs under. Each mutating
// operation completes all external collaborator calls before its
// first state write; on any failure the operation returns a coded
// *subsidy.Error and leaves state untouched.
//
// Claims move Pending→Approved (Process) or Pending→Rejected
// (Reject); both end states are terminal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/types"
)

// ErrNilCollaborator reports a missing collaborator at construction.
var ErrNilCollaborator = errors.New("nil collaborator")

// Engine is the claim lifecycle state machine.
type Engine struct {
	mu     sync.RWMutex
	st     *state
	collab subsidy.Collaborators
}

// New creates an engine from a genesis state. All four collaborators
// are required.
func New(gen types.GenesisState, collab subsidy.Collaborators) (*Engine, error) {
	if err := checkCollaborators(collab); err != nil {
		return nil, err
	}
	return &Engine{st: newState(gen), collab: collab}, nil
}

// FromSnapshot creates an engine from a previously exported snapshot.
func FromSnapshot(snap *types.StateSnapshot, collab subsidy.Collaborators) (*Engine, error) {
	if err := checkCollaborators(collab); err != nil {
		return nil, err
	}
	return &Engine{st: restoreState(snap), collab: collab}, nil
}

func checkCollaborators(c subsidy.Collaborators) error {
	switch {
	case c.Registry == nil:
		return fmt.Errorf("%w: registry", ErrNilCollaborator)
	case c.Eligibility == nil:
		return fmt.Errorf("%w: eligibility verifier", ErrNilCollaborator)
	case c.Pool == nil:
		return fmt.Errorf("%w: fund pool", ErrNilCollaborator)
	case c.Audit == nil:
		return fmt.Errorf("%w: audit logger", ErrNilCollaborator)
	}
	return nil
}

// Clone deep-copies the engine state into a new engine sharing the
// same collaborators. Blocks are executed against a clone and the
// clone is swapped in on commit; simulations run against a throwaway
// clone.
func (e *Engine) Clone() *Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Engine{st: e.st.clone(), collab: e.collab}
}

// SetHeight sets the block height operations observe. The host sets
// it once per block before applying the block's transactions.
func (e *Engine) SetHeight(h uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.height = h
}

// Snapshot exports the canonical serializable image of the state.
func (e *Engine) Snapshot() *types.StateSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.snapshot()
}

// Digest returns the sha256 digest of the canonical state image.
func (e *Engine) Digest() [32]byte {
	return e.Snapshot().Digest()
}

// requireAdmin authorizes admin-gated operations. The null identity
// never authenticates, so an engine with no admin rejects every
// admin-gated operation.
func (e *Engine) requireAdmin(caller types.FarmerID) error {
	if caller.IsNull() || caller != e.st.admin {
		return subsidy.Errorf(types.CodeNotAuthorized, "caller %q is not the admin", caller)
	}
	return nil
}

// Submit runs the full validation chain for a new claim, records the
// submitted audit event, and inserts the claim and its unverified
// proof. Validation short-circuits in a fixed order: pause, amount,
// metadata, period, cooldown, proof hash, registry membership.
func (e *Engine) Submit(ctx context.Context, caller types.FarmerID, amount types.Amount, period types.Period, metadata, proofHash []byte) (types.ClaimID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st.paused {
		return 0, subsidy.NewError(types.CodeContractPaused, "claim submission is paused")
	}
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	if err := validateMetadata(metadata); err != nil {
		return 0, err
	}
	if err := validatePeriod(period); err != nil {
		return 0, err
	}
	if !cooldownOK(e.st.record(caller, period), e.st.height) {
		return 0, subsidy.Errorf(types.CodeAlreadyClaimed, "farmer %s cannot claim again in period %d", caller, period)
	}
	hash, err := types.ProofHashFromBytes(proofHash)
	if err != nil {
		return 0, subsidy.WrapError(types.CodeInvalidProof, err)
	}
	registered, err := e.collab.Registry.IsRegistered(ctx, caller)
	if err != nil {
		return 0, subsidy.WrapError(types.CodeInvalidFarmer, err)
	}
	if !registered {
		return 0, subsidy.Errorf(types.CodeInvalidFarmer, "farmer %s is not registered", caller)
	}
	if err := e.collab.Audit.LogEvent(ctx, caller, types.EventSubmitted, amount, metadata); err != nil {
		return 0, subsidy.WrapError(types.CodeVerificationFailed, err)
	}

	id := e.st.nextClaimID
	e.st.nextClaimID++
	e.st.claims[id] = &types.Claim{
		ID:          id,
		Farmer:      caller,
		Status:      types.StatusPending,
		Amount:      amount,
		SubmittedAt: e.st.height,
		Period:      period,
		Metadata:    append([]byte(nil), metadata...),
	}
	e.st.proofs[id] = &types.ClaimProof{ClaimID: id, Hash: hash}
	return id, nil
}

// VerifyProof records the admin's verdict on a claim's proof. Claim
// status is deliberately not checked: a proof may be re-verified even
// after the claim was rejected.
func (e *Engine) VerifyProof(caller types.FarmerID, id types.ClaimID, valid bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.st.claims[id]; !ok {
		return subsidy.Errorf(types.CodeInvalidClaimID, "no claim %d", id)
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	proof, ok := e.st.proofs[id]
	if !ok {
		return subsidy.Errorf(types.CodeInvalidProof, "no proof for claim %d", id)
	}
	proof.Verified = valid
	return nil
}

// Process approves a pending claim with a verified proof: it checks
// eligibility, confirms and executes the disbursement, records the
// approved audit event, and only then mutates state. A repeat process
// of a terminal claim fails AlreadyClaimed and changes nothing.
func (e *Engine) Process(ctx context.Context, caller types.FarmerID, id types.ClaimID, notes string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim, ok := e.st.claims[id]
	if !ok {
		return subsidy.Errorf(types.CodeInvalidClaimID, "no claim %d", id)
	}
	proof, ok := e.st.proofs[id]
	if !ok {
		return subsidy.Errorf(types.CodeInvalidProof, "no proof for claim %d", id)
	}
	if claim.Status != types.StatusPending {
		return subsidy.Errorf(types.CodeAlreadyClaimed, "claim %d is already %s", id, claim.Status)
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if !proof.Verified {
		return subsidy.Errorf(types.CodeInvalidProof, "proof for claim %d is not verified", id)
	}
	if err := validateNotes(notes); err != nil {
		return err
	}

	eligible, err := e.collab.Eligibility.VerifyEligibility(ctx, claim.Farmer, claim.Period)
	if err != nil {
		return subsidy.WrapError(types.CodeVerificationFailed, err)
	}
	if !eligible {
		return subsidy.Errorf(types.CodeVerificationFailed, "farmer %s is not eligible for period %d", claim.Farmer, claim.Period)
	}
	balance, err := e.collab.Pool.Balance(ctx)
	if err != nil {
		return subsidy.WrapError(types.CodeVerificationFailed, err)
	}
	if balance < claim.Amount {
		return subsidy.Errorf(types.CodeInsufficientFunds, "pool holds %d, claim %d needs %d", balance, id, claim.Amount)
	}
	disbursed, err := e.collab.Pool.Disburse(ctx, claim.Farmer, claim.Amount)
	if err != nil {
		return subsidy.WrapError(types.CodeVerificationFailed, err)
	}
	if !disbursed {
		return subsidy.Errorf(types.CodeVerificationFailed, "pool declined disbursement for claim %d", id)
	}
	if err := e.collab.Audit.LogEvent(ctx, claim.Farmer, types.EventApproved, claim.Amount, nil); err != nil {
		return subsidy.WrapError(types.CodeVerificationFailed, err)
	}

	claim.Status = types.StatusApproved
	claim.Notes = notes
	rec := e.st.upsertRecord(claim.Farmer, claim.Period)
	rec.LastClaimBlock = e.st.height
	rec.ClaimCount++
	rec.TotalDisbursed += claim.Amount
	e.st.totalProcessed++
	e.st.totalDisbursed += claim.Amount
	return nil
}

// Reject rejects a pending claim and records the rejected audit event.
func (e *Engine) Reject(ctx context.Context, caller types.FarmerID, id types.ClaimID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim, ok := e.st.claims[id]
	if !ok {
		return subsidy.Errorf(types.CodeInvalidClaimID, "no claim %d", id)
	}
	if claim.Status != types.StatusPending {
		return subsidy.Errorf(types.CodeAlreadyClaimed, "claim %d is already %s", id, claim.Status)
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateNotes(reason); err != nil {
		return err
	}
	if err := e.collab.Audit.LogEvent(ctx, claim.Farmer, types.EventRejected, claim.Amount, nil); err != nil {
		return subsidy.WrapError(types.CodeVerificationFailed, err)
	}

	claim.Status = types.StatusRejected
	claim.Notes = reason
	return nil
}

// Blacklist permanently disqualifies a (farmer, period) pair from
// claiming. Existing record fields are preserved; a missing record is
// created zeroed with the flag set.
func (e *Engine) Blacklist(caller, farmer types.FarmerID, period types.Period) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validatePeriod(period); err != nil {
		return err
	}
	e.st.upsertRecord(farmer, period).Blacklisted = true
	return nil
}

// Pause stops claim submission until Unpause.
func (e *Engine) Pause(caller types.FarmerID) error {
	return e.setPaused(caller, true)
}

// Unpause resumes claim submission.
func (e *Engine) Unpause(caller types.FarmerID) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller types.FarmerID, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.st.paused = paused
	return nil
}

// SetAdmin transfers admin rights. The null identity cannot become
// admin.
func (e *Engine) SetAdmin(caller, newAdmin types.FarmerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if newAdmin.IsNull() {
		return subsidy.NewError(types.CodeInvalidAdmin, "new admin cannot be the null identity")
	}
	e.st.admin = newAdmin
	return nil
}
