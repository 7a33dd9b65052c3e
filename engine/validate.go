package engine

import (
	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/types"
)

// Stateless validation predicates. Each returns nil or a coded
// *subsidy.Error; the engine composes them in the fixed submission
// order (pause, amount, metadata, period, cooldown, proof, registry).

func validateAmount(amount types.Amount) error {
	if amount == 0 {
		return subsidy.NewError(types.CodeInvalidAmount, "amount must be positive")
	}
	if amount > types.MaxClaimAmount {
		return subsidy.Errorf(types.CodeInvalidAmount, "amount %d exceeds cap %d", amount, types.MaxClaimAmount)
	}
	return nil
}

func validateMetadata(metadata []byte) error {
	if len(metadata) > types.MaxMetadataLen {
		return subsidy.Errorf(types.CodeInvalidMetadata, "metadata is %d bytes, cap %d", len(metadata), types.MaxMetadataLen)
	}
	return nil
}

func validateNotes(notes string) error {
	if len(notes) > types.MaxNotesLen {
		return subsidy.Errorf(types.CodeInvalidMetadata, "notes are %d bytes, cap %d", len(notes), types.MaxNotesLen)
	}
	return nil
}

func validatePeriod(period types.Period) error {
	if !types.PeriodInWindow(period) {
		return subsidy.Errorf(types.CodeClaimPeriodExpired, "period %d outside window [%d, %d]", period, types.MinPeriod, types.MaxPeriod)
	}
	return nil
}

// cooldownOK is the combined re-claim predicate for a (farmer, period)
// record. A farmer with no record passes. Otherwise all three conjuncts
// must hold: not blacklisted, the cooldown has elapsed, and the claim
// budget is not exhausted. Any failing conjunct reads as AlreadyClaimed
// to the caller; the conjuncts are deliberately not distinguished.
func cooldownOK(rec *types.FarmerPeriodRecord, height uint64) bool {
	if rec == nil {
		return true
	}
	if rec.Blacklisted {
		return false
	}
	if height <= rec.LastClaimBlock+types.ClaimCooldown {
		return false
	}
	return rec.ClaimCount < types.MaxClaimsPerFarmer
}
