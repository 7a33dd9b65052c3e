package types

// Fixed policy values governing claim acceptance. These mirror the
// deployed contract parameters and are not runtime-configurable.
const (
	// MaxClaimAmount is the largest amount a single claim may request.
	MaxClaimAmount Amount = 1_000_000

	// ClaimCooldown is the number of block-height units a farmer must
	// wait after a processed claim before submitting again in the
	// same period.
	ClaimCooldown uint64 = 144

	// MaxClaimsPerFarmer bounds processed claims per (farmer, period).
	MaxClaimsPerFarmer uint32 = 5

	// MaxMetadataLen bounds the claim metadata blob, in bytes.
	MaxMetadataLen = 500

	// MaxNotesLen bounds verifier notes and rejection reasons, in bytes.
	MaxNotesLen = 500

	// MinPeriod and MaxPeriod delimit the accepted period window.
	MinPeriod Period = 202300
	MaxPeriod Period = 210000
)

// PeriodInWindow reports whether p falls inside the accepted window.
func PeriodInWindow(p Period) bool {
	return p >= MinPeriod && p <= MaxPeriod
}
