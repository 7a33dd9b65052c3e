package types

import "fmt"

// Code identifies the result of a claim engine operation.
// Code 0 indicates success. Code 1 is reserved for transactions the
// chain boundary cannot decode. Domain codes start at 100 and their
// numeric values are stable: they are part of the external contract
// and must never be renumbered.
type Code uint32

const (
	// CodeOK indicates the operation succeeded.
	CodeOK Code = 0

	// CodeInvalidTx indicates a malformed or undecodable transaction
	// envelope. Raised only at the chain boundary, never by the engine.
	CodeInvalidTx Code = 1

	// Domain codes (100+)

	// CodeNotAuthorized indicates the caller is not the admin.
	CodeNotAuthorized Code = 100

	// CodeAlreadyClaimed indicates a terminal claim was processed
	// again, or the cooldown predicate failed (including the
	// blacklist and max-claims conjuncts, which fold into this code).
	CodeAlreadyClaimed Code = 101

	// CodeInvalidFarmer indicates the registry does not know the caller.
	CodeInvalidFarmer Code = 102

	// CodeVerificationFailed indicates eligibility verification or
	// disbursement failed. Uncoded collaborator failures surface
	// under this code as well.
	CodeVerificationFailed Code = 103

	// CodeInsufficientFunds indicates the pool balance cannot cover
	// the claim amount.
	CodeInsufficientFunds Code = 104

	// CodeInvalidAmount indicates the amount is zero or above the cap.
	CodeInvalidAmount Code = 105

	// CodeClaimPeriodExpired indicates the period is outside the
	// accepted window.
	CodeClaimPeriodExpired Code = 106

	// CodeInvalidClaimID indicates no claim exists with the given id.
	CodeInvalidClaimID Code = 107

	// CodeContractPaused indicates the engine is paused.
	CodeContractPaused Code = 108

	// CodeInvalidMetadata indicates metadata or notes exceed the bound.
	CodeInvalidMetadata Code = 109

	// CodeBlacklistedFarmer is reserved. A blacklisted (farmer, period)
	// fails the cooldown predicate and surfaces as CodeAlreadyClaimed;
	// this code is never raised independently.
	CodeBlacklistedFarmer Code = 110

	// CodeMaxClaimsReached is reserved. Exhausting the per-period claim
	// budget fails the cooldown predicate and surfaces as
	// CodeAlreadyClaimed; this code is never raised independently.
	CodeMaxClaimsReached Code = 111

	// CodeInvalidProof indicates a malformed proof hash, a missing
	// proof record, or an unverified proof at processing time.
	CodeInvalidProof Code = 112

	// CodeInvalidAdmin indicates an attempt to transfer admin rights
	// to the null/burn identity.
	CodeInvalidAdmin Code = 113
)

// IsOK returns true if the code indicates success.
func (c Code) IsOK() bool { return c == CodeOK }

// IsDomain returns true if this is a claim-engine domain code.
func (c Code) IsDomain() bool { return c >= 100 }

// String returns the stable name of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidTx:
		return "InvalidTx"
	case CodeNotAuthorized:
		return "NotAuthorized"
	case CodeAlreadyClaimed:
		return "AlreadyClaimed"
	case CodeInvalidFarmer:
		return "InvalidFarmer"
	case CodeVerificationFailed:
		return "VerificationFailed"
	case CodeInsufficientFunds:
		return "InsufficientFunds"
	case CodeInvalidAmount:
		return "InvalidAmount"
	case CodeClaimPeriodExpired:
		return "ClaimPeriodExpired"
	case CodeInvalidClaimID:
		return "InvalidClaimId"
	case CodeContractPaused:
		return "ContractPaused"
	case CodeInvalidMetadata:
		return "InvalidMetadata"
	case CodeBlacklistedFarmer:
		return "BlacklistedFarmer"
	case CodeMaxClaimsReached:
		return "MaxClaimsReached"
	case CodeInvalidProof:
		return "InvalidProof"
	case CodeInvalidAdmin:
		return "InvalidAdmin"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(c))
	}
}
