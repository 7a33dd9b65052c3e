package engine

import (
	"github.com/blockberries/subsidy/types"
)

// Read accessors. All return copies; none mutate.

// GetClaim returns the claim with the given id.
func (e *Engine) GetClaim(id types.ClaimID) (types.Claim, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.st.claims[id]
	if !ok {
		return types.Claim{}, false
	}
	cp := *c
	cp.Metadata = append([]byte(nil), c.Metadata...)
	return cp, true
}

// GetProof returns the proof attached to the given claim.
func (e *Engine) GetProof(id types.ClaimID) (types.ClaimProof, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.st.proofs[id]
	if !ok {
		return types.ClaimProof{}, false
	}
	return *p, true
}

// GetRecord returns the (farmer, period) record.
func (e *Engine) GetRecord(farmer types.FarmerID, period types.Period) (types.FarmerPeriodRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.st.record(farmer, period)
	if r == nil {
		return types.FarmerPeriodRecord{}, false
	}
	return *r, true
}

// CanClaim re-runs the cooldown predicate for (farmer, period) at the
// current height without mutating anything.
func (e *Engine) CanClaim(farmer types.FarmerID, period types.Period) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cooldownOK(e.st.record(farmer, period), e.st.height)
}

// PendingClaims counts claims still awaiting a decision.
func (e *Engine) PendingClaims() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, c := range e.st.claims {
		if c.Status == types.StatusPending {
			n++
		}
	}
	return n
}

// TotalProcessed returns the number of approved claims.
func (e *Engine) TotalProcessed() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.totalProcessed
}

// TotalDisbursed returns the total amount disbursed across all
// approved claims.
func (e *Engine) TotalDisbursed() types.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.totalDisbursed
}

// Paused reports whether claim submission is paused.
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.paused
}

// Admin returns the current admin identity. The null identity means
// the engine has no admin.
func (e *Engine) Admin() types.FarmerID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.admin
}

// Height returns the block height operations currently observe.
func (e *Engine) Height() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.height
}

// NextClaimID returns the id the next submitted claim will receive.
func (e *Engine) NextClaimID() types.ClaimID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.nextClaimID
}

// Stats assembles the aggregate counter view in one atomic read.
func (e *Engine) Stats() types.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pending := uint32(0)
	for _, c := range e.st.claims {
		if c.Status == types.StatusPending {
			pending++
		}
	}
	return types.Stats{
		Height:         e.st.height,
		NextClaimID:    e.st.nextClaimID,
		PendingClaims:  pending,
		TotalProcessed: e.st.totalProcessed,
		TotalDisbursed: e.st.totalDisbursed,
		Paused:         e.st.paused,
		Admin:          e.st.admin,
	}
}
