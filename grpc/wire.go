package subsidygrpc

import "github.com/blockberries/subsidy/types"

// Transport-specific request and response types for the collaborator
// RPCs. Responses carry an in-band failure code so that coded
// collaborator errors cross the wire without translation; a zero code
// means the call succeeded.

// IsRegisteredRequest wraps the parameters for Registry.IsRegistered.
type IsRegisteredRequest struct {
	Farmer types.FarmerID `cramberry:"1"`
}

// VerifyEligibilityRequest wraps the parameters for
// EligibilityVerifier.VerifyEligibility.
type VerifyEligibilityRequest struct {
	Farmer types.FarmerID `cramberry:"1"`
	Period types.Period   `cramberry:"2"`
}

// BalanceRequest is the (empty) request for FundPool.Balance.
type BalanceRequest struct{}

// DisburseRequest wraps the parameters for FundPool.Disburse.
type DisburseRequest struct {
	Farmer types.FarmerID `cramberry:"1"`
	Amount types.Amount   `cramberry:"2"`
}

// LogEventRequest wraps the parameters for AuditLogger.LogEvent.
type LogEventRequest struct {
	Farmer   types.FarmerID `cramberry:"1"`
	Status   string         `cramberry:"2"`
	Amount   types.Amount   `cramberry:"3"`
	Metadata []byte         `cramberry:"4"`
}

// VerdictResponse carries a boolean verdict or a coded failure.
type VerdictResponse struct {
	Ok   bool   `cramberry:"1"`
	Code uint32 `cramberry:"2"`
	Info string `cramberry:"3"`
}

// BalanceResponse carries the pool balance or a coded failure.
type BalanceResponse struct {
	Balance types.Amount `cramberry:"1"`
	Code    uint32       `cramberry:"2"`
	Info    string       `cramberry:"3"`
}

// LogEventResponse carries the audit write result.
type LogEventResponse struct {
	Code uint32 `cramberry:"1"`
	Info string `cramberry:"2"`
}
