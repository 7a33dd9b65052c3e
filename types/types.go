// Package types defines the core data types of the subsidy claim
// engine: claims, proofs, per-(farmer, period) records, result codes,
// policy constants, the transaction envelope, and the snapshot format.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns (gRPC codec
// registration) are handled in the transport packages.
package types

import (
	"encoding/hex"
	"fmt"
)

// FarmerID identifies a party that may submit or receive claims.
// The empty FarmerID is the null/burn identity: it never
// authenticates and cannot become admin.
type FarmerID string

// NullFarmer is the null/burn identity.
const NullFarmer FarmerID = ""

// IsNull reports whether the identity is the null/burn identity.
func (f FarmerID) IsNull() bool { return f == NullFarmer }

// Period is an integer-coded eligibility epoch (e.g. a fiscal
// quarter code such as 202501).
type Period uint32

// Amount is a subsidy amount in base units.
type Amount uint64

// ClaimID identifies a claim. IDs are 1-based, allocated from a
// monotonically increasing counter, and never reused.
type ClaimID uint64

// ProofHashLen is the required length of a claim proof hash.
const ProofHashLen = 32

// ProofHash is a fixed-length hash attesting to off-system evidence
// supporting a claim. It is verified out-of-band by the admin.
type ProofHash [ProofHashLen]byte

// ProofHashFromBytes converts a raw byte slice into a ProofHash.
// The slice must be exactly ProofHashLen bytes.
func ProofHashFromBytes(b []byte) (ProofHash, error) {
	var h ProofHash
	if len(b) != ProofHashLen {
		return h, fmt.Errorf("proof hash must be %d bytes, got %d", ProofHashLen, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h ProofHash) String() string { return hex.EncodeToString(h[:]) }

// ClaimStatus is the lifecycle state of a claim. Transitions are
// Pending→Approved and Pending→Rejected only; both are terminal.
type ClaimStatus uint8

const (
	// StatusPending means the claim awaits proof verification and
	// processing.
	StatusPending ClaimStatus = 1
	// StatusApproved means the claim was processed and disbursed.
	StatusApproved ClaimStatus = 2
	// StatusRejected means the claim was rejected by the admin.
	StatusRejected ClaimStatus = 3
)

// Terminal reports whether the status admits no further transition.
func (s ClaimStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s ClaimStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Audit event statuses passed to the AuditLogger collaborator.
const (
	EventSubmitted = "submitted"
	EventApproved  = "approved"
	EventRejected  = "rejected"
)
