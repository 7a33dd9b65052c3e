package engine

import (
	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/types"
)

// Gate runs the collaborator-free admission checks for a decoded
// transaction against committed state. The mempool calls it before
// admitting a transaction; execution later re-runs the full chain, so
// a transaction passing the gate may still fail in a block.
func (e *Engine) Gate(tx *types.Tx) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch {
	case tx.Submit != nil:
		s := tx.Submit
		if e.st.paused {
			return subsidy.NewError(types.CodeContractPaused, "claim submission is paused")
		}
		if err := validateAmount(s.Amount); err != nil {
			return err
		}
		if err := validateMetadata(s.Metadata); err != nil {
			return err
		}
		if err := validatePeriod(s.Period); err != nil {
			return err
		}
		if _, err := types.ProofHashFromBytes(s.ProofHash); err != nil {
			return subsidy.WrapError(types.CodeInvalidProof, err)
		}
		if !cooldownOK(e.st.record(s.Farmer, s.Period), e.st.height) {
			return subsidy.Errorf(types.CodeAlreadyClaimed, "farmer %s cannot claim again in period %d", s.Farmer, s.Period)
		}
	case tx.Process != nil:
		return validateNotes(tx.Process.Notes)
	case tx.Reject != nil:
		return validateNotes(tx.Reject.Reason)
	case tx.Blacklist != nil:
		return validatePeriod(tx.Blacklist.Period)
	case tx.Admin != nil:
		if tx.Admin.NewAdmin.IsNull() {
			return subsidy.NewError(types.CodeInvalidAdmin, "new admin cannot be the null identity")
		}
	}
	return nil
}
