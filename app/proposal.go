package app

import (
	"context"
	"fmt"

	bapitypes "github.com/blockberries/bapi/types"

	"github.com/blockberries/subsidy/types"
)

// ---------------------------------------------------------------------------
// ProposalControl
// ---------------------------------------------------------------------------

// BuildProposal fills the block with mempool transactions that still
// decode, inside the byte budget. Mempool order is preserved; the
// engine pre-sorts by priority.
func (app *App) BuildProposal(_ context.Context, pctx bapitypes.ProposalContext) (bapitypes.BuiltProposal, error) {
	var txs []bapitypes.Tx
	var total uint64

	for _, raw := range pctx.MempoolTxs {
		size := uint64(len(raw))
		if total+size > pctx.MaxTxBytes {
			continue
		}
		if _, err := types.DecodeTx(raw); err != nil {
			continue
		}
		txs = append(txs, raw)
		total += size
	}

	return bapitypes.BuiltProposal{Txs: txs}, nil
}

// VerifyProposal rejects proposals carrying transactions that do not
// decode. Domain validity is not judged here: a well-formed claim that
// fails its validation chain simply fails inside the block.
func (app *App) VerifyProposal(_ context.Context, proposal bapitypes.ReceivedProposal) (bapitypes.ProposalVerdict, error) {
	for i, raw := range proposal.Txs {
		if _, err := types.DecodeTx(raw); err != nil {
			return bapitypes.ProposalVerdict{
				Accept:       false,
				RejectReason: fmt.Sprintf("tx %d does not decode: %v", i, err),
			}, nil
		}
	}
	return bapitypes.ProposalVerdict{Accept: true}, nil
}
