package subsidytest

import (
	"bytes"
	"context"
	"testing"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/engine"
	"github.com/blockberries/subsidy/types"
)

// DefaultAdmin is the admin identity harness engines start with.
const DefaultAdmin types.FarmerID = "admin"

// Default claim arguments used by the Must helpers.
const (
	DefaultAmount types.Amount = 500
	DefaultPeriod types.Period = 202501
)

// ProofHash returns a deterministic proof hash filled with the seed.
func ProofHash(seed byte) []byte {
	return bytes.Repeat([]byte{seed}, types.ProofHashLen)
}

// Harness drives an engine through claim lifecycles with fatal
// assertions on unexpected failures.
type Harness struct {
	t      *testing.T
	Engine *engine.Engine
	Mocks  *Mocks
}

// NewHarness creates a harness around a fresh engine with
// DefaultAdmin, permissive mocks, and height 1.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	return NewHarnessWith(t, types.GenesisState{Admin: DefaultAdmin})
}

// NewHarnessWith creates a harness with an explicit genesis state.
func NewHarnessWith(t *testing.T, gen types.GenesisState) *Harness {
	t.Helper()
	m := NewMocks()
	eng, err := engine.New(gen, m.Collaborators())
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	eng.SetHeight(1)
	return &Harness{t: t, Engine: eng, Mocks: m}
}

// Wrap builds a harness around an existing engine and mock set.
func Wrap(t *testing.T, eng *engine.Engine, m *Mocks) *Harness {
	t.Helper()
	return &Harness{t: t, Engine: eng, Mocks: m}
}

// Advance sets the height operations observe.
func (h *Harness) Advance(height uint64) {
	h.Engine.SetHeight(height)
}

// MustSubmit submits a claim and fails the test on rejection.
func (h *Harness) MustSubmit(farmer types.FarmerID, amount types.Amount, period types.Period) types.ClaimID {
	h.t.Helper()
	id, err := h.Engine.Submit(context.Background(), farmer, amount, period, []byte("docs"), ProofHash(0xaa))
	if err != nil {
		h.t.Fatalf("Submit(%s, %d, %d) failed: %v", farmer, amount, period, err)
	}
	return id
}

// MustVerify marks the claim's proof verified as the admin.
func (h *Harness) MustVerify(id types.ClaimID) {
	h.t.Helper()
	if err := h.Engine.VerifyProof(DefaultAdmin, id, true); err != nil {
		h.t.Fatalf("VerifyProof(%d) failed: %v", id, err)
	}
}

// MustProcess approves the claim as the admin.
func (h *Harness) MustProcess(id types.ClaimID) {
	h.t.Helper()
	if err := h.Engine.Process(context.Background(), DefaultAdmin, id, "ok"); err != nil {
		h.t.Fatalf("Process(%d) failed: %v", id, err)
	}
}

// MustReject rejects the claim as the admin.
func (h *Harness) MustReject(id types.ClaimID, reason string) {
	h.t.Helper()
	if err := h.Engine.Reject(context.Background(), DefaultAdmin, id, reason); err != nil {
		h.t.Fatalf("Reject(%d) failed: %v", id, err)
	}
}

// MustApprove runs a full submit, verify, process cycle.
func (h *Harness) MustApprove(farmer types.FarmerID, amount types.Amount, period types.Period) types.ClaimID {
	h.t.Helper()
	id := h.MustSubmit(farmer, amount, period)
	h.MustVerify(id)
	h.MustProcess(id)
	return id
}

// Claim fetches a claim that must exist.
func (h *Harness) Claim(id types.ClaimID) types.Claim {
	h.t.Helper()
	c, ok := h.Engine.GetClaim(id)
	if !ok {
		h.t.Fatalf("claim %d does not exist", id)
	}
	return c
}

// RequireCode asserts that err carries the wanted result code.
func (h *Harness) RequireCode(err error, want types.Code) {
	h.t.Helper()
	if err == nil {
		h.t.Fatalf("expected code %s, got nil error", want)
	}
	code, ok := subsidy.CodeOf(err)
	if !ok {
		h.t.Fatalf("expected code %s, got uncoded error: %v", want, err)
	}
	if code != want {
		h.t.Fatalf("expected code %s, got %s: %v", want, code, err)
	}
}
