package types

// Claim is a request for a subsidy payout tied to one farmer and one
// period. Status transitions only Pending→Approved or
// Pending→Rejected, never reversed, never re-entered.
type Claim struct {
	ID     ClaimID     `cramberry:"1"`
	Farmer FarmerID    `cramberry:"2"`
	Status ClaimStatus `cramberry:"3"`
	Amount Amount      `cramberry:"4"`
	// SubmittedAt is the block height at which the claim was accepted.
	SubmittedAt uint64 `cramberry:"5"`
	Period      Period `cramberry:"6"`
	// Metadata is an opaque blob supplied at submission, at most
	// MaxMetadataLen bytes.
	Metadata []byte `cramberry:"7"`
	// Notes is set by the admin on approval or rejection, at most
	// MaxNotesLen bytes. Empty while Pending.
	Notes string `cramberry:"8"`
}

// ClaimProof carries the evidence hash for a claim. It is created
// atomically with the claim (1:1 by id) with Verified=false; a claim
// cannot be approved while Verified is false.
type ClaimProof struct {
	ClaimID  ClaimID   `cramberry:"1"`
	Hash     ProofHash `cramberry:"2"`
	Verified bool      `cramberry:"3"`
}

// FarmerPeriodRecord tracks rate-limit and blacklist state for one
// (farmer, period) pair. Created lazily on the first processed claim
// or the first blacklist action for the pair; never deleted. Once
// Blacklisted is true no further claims are accepted for the pair,
// regardless of the other fields.
type FarmerPeriodRecord struct {
	Farmer FarmerID `cramberry:"1"`
	Period Period   `cramberry:"2"`
	// LastClaimBlock is the height of the most recent processed claim.
	LastClaimBlock uint64 `cramberry:"3"`
	// ClaimCount is the number of processed claims, bounded by
	// MaxClaimsPerFarmer.
	ClaimCount uint32 `cramberry:"4"`
	// TotalDisbursed is the cumulative amount disbursed to the pair.
	TotalDisbursed Amount `cramberry:"5"`
	Blacklisted    bool   `cramberry:"6"`
}
