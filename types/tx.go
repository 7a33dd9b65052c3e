package types

import (
	"errors"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Transaction payloads. Every payload names the caller explicitly;
// caller authentication is the host environment's concern, the engine
// only checks authorization against its admin identity.

// SubmitClaim requests a new claim for the calling farmer.
type SubmitClaim struct {
	Farmer   FarmerID `cramberry:"1"`
	Amount   Amount   `cramberry:"2"`
	Period   Period   `cramberry:"3"`
	Metadata []byte   `cramberry:"4"`
	// ProofHash must be exactly ProofHashLen bytes; the bound is
	// enforced by the engine, not the codec.
	ProofHash []byte `cramberry:"5"`
}

// VerifyProof sets the verified flag on a claim's proof.
type VerifyProof struct {
	Caller  FarmerID `cramberry:"1"`
	ClaimID ClaimID  `cramberry:"2"`
	Valid   bool     `cramberry:"3"`
}

// ProcessClaim approves and disburses a pending claim.
type ProcessClaim struct {
	Caller  FarmerID `cramberry:"1"`
	ClaimID ClaimID  `cramberry:"2"`
	Notes   string   `cramberry:"3"`
}

// RejectClaim rejects a pending claim.
type RejectClaim struct {
	Caller  FarmerID `cramberry:"1"`
	ClaimID ClaimID  `cramberry:"2"`
	Reason  string   `cramberry:"3"`
}

// BlacklistFarmer permanently disqualifies a (farmer, period) pair.
type BlacklistFarmer struct {
	Caller FarmerID `cramberry:"1"`
	Farmer FarmerID `cramberry:"2"`
	Period Period   `cramberry:"3"`
}

// SetPaused pauses or unpauses claim submission.
type SetPaused struct {
	Caller FarmerID `cramberry:"1"`
	Paused bool     `cramberry:"2"`
}

// SetAdmin transfers admin rights.
type SetAdmin struct {
	Caller   FarmerID `cramberry:"1"`
	NewAdmin FarmerID `cramberry:"2"`
}

// Tx is the transaction envelope: a tagged union with exactly one
// arm set. Envelopes with zero or multiple arms are rejected at
// decode time.
type Tx struct {
	Submit    *SubmitClaim     `cramberry:"1"`
	Verify    *VerifyProof     `cramberry:"2"`
	Process   *ProcessClaim    `cramberry:"3"`
	Reject    *RejectClaim     `cramberry:"4"`
	Blacklist *BlacklistFarmer `cramberry:"5"`
	Pause     *SetPaused       `cramberry:"6"`
	Admin     *SetAdmin        `cramberry:"7"`
}

// Envelope decode errors.
var (
	ErrEmptyTx     = errors.New("empty transaction")
	ErrNoTxArm     = errors.New("transaction envelope has no operation")
	ErrMultiTxArms = errors.New("transaction envelope has multiple operations")
)

// DecodeTx parses a raw transaction into an envelope with exactly
// one operation arm.
func DecodeTx(raw []byte) (*Tx, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyTx
	}
	tx := new(Tx)
	if err := cramberry.Unmarshal(raw, tx); err != nil {
		return nil, err
	}
	switch n := tx.arms(); {
	case n == 0:
		return nil, ErrNoTxArm
	case n > 1:
		return nil, ErrMultiTxArms
	}
	return tx, nil
}

func (t *Tx) arms() int {
	n := 0
	if t.Submit != nil {
		n++
	}
	if t.Verify != nil {
		n++
	}
	if t.Process != nil {
		n++
	}
	if t.Reject != nil {
		n++
	}
	if t.Blacklist != nil {
		n++
	}
	if t.Pause != nil {
		n++
	}
	if t.Admin != nil {
		n++
	}
	return n
}

// Kind returns the operation name of the envelope's single arm.
func (t *Tx) Kind() string {
	switch {
	case t.Submit != nil:
		return "submit"
	case t.Verify != nil:
		return "verify_proof"
	case t.Process != nil:
		return "process"
	case t.Reject != nil:
		return "reject"
	case t.Blacklist != nil:
		return "blacklist"
	case t.Pause != nil:
		if t.Pause.Paused {
			return "pause"
		}
		return "unpause"
	case t.Admin != nil:
		return "set_admin"
	default:
		return "unknown"
	}
}

// Caller returns the identity the envelope declares as its sender.
func (t *Tx) Caller() FarmerID {
	switch {
	case t.Submit != nil:
		return t.Submit.Farmer
	case t.Verify != nil:
		return t.Verify.Caller
	case t.Process != nil:
		return t.Process.Caller
	case t.Reject != nil:
		return t.Reject.Caller
	case t.Blacklist != nil:
		return t.Blacklist.Caller
	case t.Pause != nil:
		return t.Pause.Caller
	case t.Admin != nil:
		return t.Admin.Caller
	default:
		return NullFarmer
	}
}

// AdminOp reports whether the operation is admin-gated.
func (t *Tx) AdminOp() bool { return t.Submit == nil }

// --- Transaction builders ---

func encodeTx(t *Tx) []byte {
	data, _ := cramberry.Marshal(t) // envelope structs always marshal
	return data
}

// SubmitTx builds a raw submit transaction.
func SubmitTx(farmer FarmerID, amount Amount, period Period, metadata, proofHash []byte) []byte {
	return encodeTx(&Tx{Submit: &SubmitClaim{
		Farmer:    farmer,
		Amount:    amount,
		Period:    period,
		Metadata:  metadata,
		ProofHash: proofHash,
	}})
}

// VerifyProofTx builds a raw proof verification transaction.
func VerifyProofTx(caller FarmerID, id ClaimID, valid bool) []byte {
	return encodeTx(&Tx{Verify: &VerifyProof{Caller: caller, ClaimID: id, Valid: valid}})
}

// ProcessTx builds a raw claim processing transaction.
func ProcessTx(caller FarmerID, id ClaimID, notes string) []byte {
	return encodeTx(&Tx{Process: &ProcessClaim{Caller: caller, ClaimID: id, Notes: notes}})
}

// RejectTx builds a raw claim rejection transaction.
func RejectTx(caller FarmerID, id ClaimID, reason string) []byte {
	return encodeTx(&Tx{Reject: &RejectClaim{Caller: caller, ClaimID: id, Reason: reason}})
}

// BlacklistTx builds a raw blacklist transaction.
func BlacklistTx(caller, farmer FarmerID, period Period) []byte {
	return encodeTx(&Tx{Blacklist: &BlacklistFarmer{Caller: caller, Farmer: farmer, Period: period}})
}

// PauseTx builds a raw pause/unpause transaction.
func PauseTx(caller FarmerID, paused bool) []byte {
	return encodeTx(&Tx{Pause: &SetPaused{Caller: caller, Paused: paused}})
}

// SetAdminTx builds a raw admin transfer transaction.
func SetAdminTx(caller, newAdmin FarmerID) []byte {
	return encodeTx(&Tx{Admin: &SetAdmin{Caller: caller, NewAdmin: newAdmin}})
}
