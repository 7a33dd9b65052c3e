// Package subsidy implements a claim lifecycle engine for disbursing
// subsidy funds to registered farmers.
//
// The root package defines the contracts shared by every layer: the
// four external collaborator interfaces ([Registry],
// [EligibilityVerifier], [FundPool], [AuditLogger]) and the coded
// [Error] type carried by every rejected operation.
//
// The state machine itself lives in the engine package. The
// chain-facing application that drives it from block execution lives
// in app. Collaborators can be served in-process (local) or over gRPC
// (grpc); the engine only sees the interfaces below.
package subsidy

import (
	"context"

	"github.com/blockberries/subsidy/types"
)

// Registry answers farmer membership questions. It is consulted once
// per claim submission, after all stateless checks have passed.
type Registry interface {
	// IsRegistered reports whether the farmer identity is known to
	// the registry. A false result with a nil error means the
	// identity is well formed but not registered.
	IsRegistered(ctx context.Context, farmer types.FarmerID) (bool, error)
}

// EligibilityVerifier confirms that a farmer qualifies for a subsidy
// in a given period. It is consulted during claim processing, after
// the admin has verified the claim proof.
type EligibilityVerifier interface {
	// VerifyEligibility reports whether the farmer is eligible for
	// the period. Both a false result and a call error fail the
	// processing step with the same code; callers that need to
	// distinguish the two must inspect the wrapped cause.
	VerifyEligibility(ctx context.Context, farmer types.FarmerID, period types.Period) (bool, error)
}

// FundPool holds the subsidy funds and performs disbursements.
type FundPool interface {
	// Balance returns the funds currently available for disbursement.
	Balance(ctx context.Context) (types.Amount, error)

	// Disburse transfers amount to the farmer. A false result with a
	// nil error means the pool declined the transfer.
	Disburse(ctx context.Context, farmer types.FarmerID, amount types.Amount) (bool, error)
}

// AuditLogger records claim lifecycle events on an external audit
// trail. Logging is strict: if LogEvent fails, the operation that
// attempted it fails too, and no state change is applied. An audit
// trail with holes is worse than a rejected transaction.
type AuditLogger interface {
	// LogEvent records a lifecycle event. status is one of the
	// types.Event* constants; metadata is the claim metadata blob.
	LogEvent(ctx context.Context, farmer types.FarmerID, status string, amount types.Amount, metadata []byte) error
}

// Collaborators bundles the four external services the engine
// depends on. All four are required.
type Collaborators struct {
	Registry    Registry
	Eligibility EligibilityVerifier
	Pool        FundPool
	Audit       AuditLogger
}
