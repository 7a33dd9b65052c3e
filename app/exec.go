package app

import (
	"context"
	"fmt"

	bapitypes "github.com/blockberries/bapi/types"

	"github.com/blockberries/subsidy/engine"
	"github.com/blockberries/subsidy/types"
)

// applyTx decodes and executes one transaction against the given
// engine. The decoded envelope is returned for accounting; it is nil
// when the transaction did not decode.
func applyTx(ctx context.Context, eng *engine.Engine, index uint32, raw bapitypes.Tx) (bapitypes.TxOutcome, *types.Tx) {
	tx, err := types.DecodeTx(raw)
	if err != nil {
		return bapitypes.TxOutcome{
			Index: index,
			Code:  uint32(types.CodeInvalidTx),
			Info:  err.Error(),
		}, nil
	}
	return executeTx(ctx, eng, index, tx), tx
}

// executeTx dispatches the envelope's single arm to the engine and
// shapes the outcome. Event kinds match the operation names reported
// by Tx.Kind.
func executeTx(ctx context.Context, eng *engine.Engine, index uint32, tx *types.Tx) bapitypes.TxOutcome {
	switch {
	case tx.Submit != nil:
		s := tx.Submit
		id, err := eng.Submit(ctx, s.Farmer, s.Amount, s.Period, s.Metadata, s.ProofHash)
		if err != nil {
			return failedOutcome(index, err)
		}
		return bapitypes.TxOutcome{
			Index: index,
			Data:  ClaimKey(id),
			Events: []bapitypes.Event{{
				Kind: "submit",
				Attributes: []bapitypes.EventAttribute{
					{Key: "claim_id", Value: fmt.Sprintf("%d", id), Index: true},
					{Key: "farmer", Value: string(s.Farmer), Index: true},
					{Key: "period", Value: fmt.Sprintf("%d", s.Period), Index: true},
					{Key: "amount", Value: fmt.Sprintf("%d", s.Amount), Index: false},
				},
			}},
		}

	case tx.Verify != nil:
		v := tx.Verify
		if err := eng.VerifyProof(v.Caller, v.ClaimID, v.Valid); err != nil {
			return failedOutcome(index, err)
		}
		return bapitypes.TxOutcome{
			Index: index,
			Events: []bapitypes.Event{{
				Kind: "verify_proof",
				Attributes: []bapitypes.EventAttribute{
					{Key: "claim_id", Value: fmt.Sprintf("%d", v.ClaimID), Index: true},
					{Key: "valid", Value: fmt.Sprintf("%t", v.Valid), Index: false},
				},
			}},
		}

	case tx.Process != nil:
		p := tx.Process
		if err := eng.Process(ctx, p.Caller, p.ClaimID, p.Notes); err != nil {
			return failedOutcome(index, err)
		}
		claim, _ := eng.GetClaim(p.ClaimID)
		return bapitypes.TxOutcome{
			Index: index,
			Events: []bapitypes.Event{{
				Kind: "process",
				Attributes: []bapitypes.EventAttribute{
					{Key: "claim_id", Value: fmt.Sprintf("%d", p.ClaimID), Index: true},
					{Key: "farmer", Value: string(claim.Farmer), Index: true},
					{Key: "period", Value: fmt.Sprintf("%d", claim.Period), Index: true},
					{Key: "amount", Value: fmt.Sprintf("%d", claim.Amount), Index: false},
				},
			}},
		}

	case tx.Reject != nil:
		r := tx.Reject
		if err := eng.Reject(ctx, r.Caller, r.ClaimID, r.Reason); err != nil {
			return failedOutcome(index, err)
		}
		claim, _ := eng.GetClaim(r.ClaimID)
		return bapitypes.TxOutcome{
			Index: index,
			Events: []bapitypes.Event{{
				Kind: "reject",
				Attributes: []bapitypes.EventAttribute{
					{Key: "claim_id", Value: fmt.Sprintf("%d", r.ClaimID), Index: true},
					{Key: "farmer", Value: string(claim.Farmer), Index: true},
				},
			}},
		}

	case tx.Blacklist != nil:
		b := tx.Blacklist
		if err := eng.Blacklist(b.Caller, b.Farmer, b.Period); err != nil {
			return failedOutcome(index, err)
		}
		return bapitypes.TxOutcome{
			Index: index,
			Events: []bapitypes.Event{{
				Kind: "blacklist",
				Attributes: []bapitypes.EventAttribute{
					{Key: "farmer", Value: string(b.Farmer), Index: true},
					{Key: "period", Value: fmt.Sprintf("%d", b.Period), Index: true},
				},
			}},
		}

	case tx.Pause != nil:
		p := tx.Pause
		var err error
		if p.Paused {
			err = eng.Pause(p.Caller)
		} else {
			err = eng.Unpause(p.Caller)
		}
		if err != nil {
			return failedOutcome(index, err)
		}
		return bapitypes.TxOutcome{
			Index: index,
			Events: []bapitypes.Event{{
				Kind: tx.Kind(),
				Attributes: []bapitypes.EventAttribute{
					{Key: "paused", Value: fmt.Sprintf("%t", p.Paused), Index: false},
				},
			}},
		}

	case tx.Admin != nil:
		a := tx.Admin
		if err := eng.SetAdmin(a.Caller, a.NewAdmin); err != nil {
			return failedOutcome(index, err)
		}
		return bapitypes.TxOutcome{
			Index: index,
			Events: []bapitypes.Event{{
				Kind: "set_admin",
				Attributes: []bapitypes.EventAttribute{
					{Key: "admin", Value: string(a.NewAdmin), Index: true},
				},
			}},
		}

	default:
		// Unreachable: DecodeTx guarantees exactly one arm.
		return bapitypes.TxOutcome{
			Index: index,
			Code:  uint32(types.CodeInvalidTx),
			Info:  "transaction envelope has no operation",
		}
	}
}

func failedOutcome(index uint32, err error) bapitypes.TxOutcome {
	return bapitypes.TxOutcome{Index: index, Code: outcomeCode(err), Info: err.Error()}
}

// ---------------------------------------------------------------------------
// Simulator
// ---------------------------------------------------------------------------

// Simulate dry-runs a transaction against a throwaway clone of the
// committed engine. Collaborators are still called, so a simulated
// process really asks the fund pool to disburse; the resulting state
// is discarded either way.
func (app *App) Simulate(ctx context.Context, raw bapitypes.Tx) (bapitypes.TxOutcome, error) {
	app.mu.RLock()
	eng := app.current.Clone()
	app.mu.RUnlock()

	outcome, _ := applyTx(ctx, eng, 0, raw)
	return outcome, nil
}
