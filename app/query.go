package app

import (
	"context"
	"encoding/binary"
	"fmt"

	bapitypes "github.com/blockberries/bapi/types"
	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/subsidy/types"
)

// Query paths served by the application.
const (
	PathClaim    bapitypes.QueryPath = "/claim"
	PathProof    bapitypes.QueryPath = "/proof"
	PathRecord   bapitypes.QueryPath = "/record"
	PathCanClaim bapitypes.QueryPath = "/canclaim"
	PathStats    bapitypes.QueryPath = "/stats"
	PathAdmin    bapitypes.QueryPath = "/admin"
	PathPaused   bapitypes.QueryPath = "/paused"
)

// ClaimKey encodes a claim id for the /claim and /proof paths. It is
// also the Data payload of a successful submit outcome.
func ClaimKey(id types.ClaimID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// DecodeClaimKey parses a /claim or /proof request payload.
func DecodeClaimKey(data []byte) (types.ClaimID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("claim key must be 8 bytes, got %d", len(data))
	}
	return types.ClaimID(binary.BigEndian.Uint64(data)), nil
}

// RecordKey encodes a (farmer, period) pair for the /record and
// /canclaim paths: 4 big-endian period bytes followed by the farmer id.
func RecordKey(farmer types.FarmerID, period types.Period) []byte {
	buf := make([]byte, 4+len(farmer))
	binary.BigEndian.PutUint32(buf, uint32(period))
	copy(buf[4:], farmer)
	return buf
}

// DecodeRecordKey parses a /record or /canclaim request payload.
func DecodeRecordKey(data []byte) (types.FarmerID, types.Period, error) {
	if len(data) < 5 {
		return "", 0, fmt.Errorf("record key must be 4 period bytes plus a farmer id, got %d bytes", len(data))
	}
	return types.FarmerID(data[4:]), types.Period(binary.BigEndian.Uint32(data[:4])), nil
}

// Query serves committed state. Unknown ids yield domain codes;
// malformed payloads and unknown paths yield code 1. Every result
// carries the committed height.
func (app *App) Query(_ context.Context, req bapitypes.StateQuery) (bapitypes.StateQueryResult, error) {
	app.mu.RLock()
	eng := app.current
	app.mu.RUnlock()

	app.metrics.IncQueries(string(req.Path))
	height := eng.Height()

	switch req.Path {
	case PathClaim:
		id, err := DecodeClaimKey(req.Data)
		if err != nil {
			return queryFailure(types.CodeInvalidTx, err.Error(), height), nil
		}
		claim, ok := eng.GetClaim(id)
		if !ok {
			return queryFailure(types.CodeInvalidClaimID, fmt.Sprintf("no claim %d", id), height), nil
		}
		value, _ := cramberry.Marshal(&claim) // engine structs always marshal
		return bapitypes.StateQueryResult{Key: req.Data, Value: value, Height: height}, nil

	case PathProof:
		id, err := DecodeClaimKey(req.Data)
		if err != nil {
			return queryFailure(types.CodeInvalidTx, err.Error(), height), nil
		}
		proof, ok := eng.GetProof(id)
		if !ok {
			return queryFailure(types.CodeInvalidClaimID, fmt.Sprintf("no claim %d", id), height), nil
		}
		value, _ := cramberry.Marshal(&proof) // engine structs always marshal
		return bapitypes.StateQueryResult{Key: req.Data, Value: value, Height: height}, nil

	case PathRecord:
		farmer, period, err := DecodeRecordKey(req.Data)
		if err != nil {
			return queryFailure(types.CodeInvalidTx, err.Error(), height), nil
		}
		// A farmer with no history reads as the zero record.
		rec, ok := eng.GetRecord(farmer, period)
		if !ok {
			rec = types.FarmerPeriodRecord{Farmer: farmer, Period: period}
		}
		value, _ := cramberry.Marshal(&rec) // engine structs always marshal
		return bapitypes.StateQueryResult{Key: req.Data, Value: value, Height: height}, nil

	case PathCanClaim:
		farmer, period, err := DecodeRecordKey(req.Data)
		if err != nil {
			return queryFailure(types.CodeInvalidTx, err.Error(), height), nil
		}
		return bapitypes.StateQueryResult{
			Key:    req.Data,
			Value:  encodeBool(eng.CanClaim(farmer, period)),
			Height: height,
		}, nil

	case PathStats:
		return bapitypes.StateQueryResult{
			Value:  types.EncodeStats(eng.Stats()),
			Height: height,
		}, nil

	case PathAdmin:
		return bapitypes.StateQueryResult{
			Value:  []byte(eng.Admin()),
			Height: height,
		}, nil

	case PathPaused:
		return bapitypes.StateQueryResult{
			Value:  encodeBool(eng.Paused()),
			Height: height,
		}, nil

	default:
		return queryFailure(types.CodeInvalidTx, "unknown query path", height), nil
	}
}

func queryFailure(code types.Code, info string, height uint64) bapitypes.StateQueryResult {
	return bapitypes.StateQueryResult{Code: uint32(code), Info: info, Height: height}
}

func encodeBool(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}
