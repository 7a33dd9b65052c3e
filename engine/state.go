package engine

import (
	"github.com/blockberries/subsidy/types"
)

// recordKey addresses a FarmerPeriodRecord.
type recordKey struct {
	farmer types.FarmerID
	period types.Period
}

// state holds the entire claim engine state: three keyed maps plus the
// scalar registers. It has no locking of its own; the Engine serializes
// access.
type state struct {
	height         uint64
	nextClaimID    types.ClaimID
	paused         bool
	admin          types.FarmerID
	totalProcessed uint64
	totalDisbursed types.Amount

	claims  map[types.ClaimID]*types.Claim
	proofs  map[types.ClaimID]*types.ClaimProof
	records map[recordKey]*types.FarmerPeriodRecord
}

func newState(gen types.GenesisState) *state {
	return &state{
		nextClaimID: 1,
		paused:      gen.Paused,
		admin:       gen.Admin,
		claims:      make(map[types.ClaimID]*types.Claim),
		proofs:      make(map[types.ClaimID]*types.ClaimProof),
		records:     make(map[recordKey]*types.FarmerPeriodRecord),
	}
}

func (s *state) clone() *state {
	c := &state{
		height:         s.height,
		nextClaimID:    s.nextClaimID,
		paused:         s.paused,
		admin:          s.admin,
		totalProcessed: s.totalProcessed,
		totalDisbursed: s.totalDisbursed,
		claims:         make(map[types.ClaimID]*types.Claim, len(s.claims)),
		proofs:         make(map[types.ClaimID]*types.ClaimProof, len(s.proofs)),
		records:        make(map[recordKey]*types.FarmerPeriodRecord, len(s.records)),
	}
	for id, cl := range s.claims {
		cp := *cl
		cp.Metadata = append([]byte(nil), cl.Metadata...)
		c.claims[id] = &cp
	}
	for id, p := range s.proofs {
		pp := *p
		c.proofs[id] = &pp
	}
	for k, r := range s.records {
		rr := *r
		c.records[k] = &rr
	}
	return c
}

// record returns the (farmer, period) record, or nil if none exists.
func (s *state) record(farmer types.FarmerID, period types.Period) *types.FarmerPeriodRecord {
	return s.records[recordKey{farmer: farmer, period: period}]
}

// upsertRecord returns the (farmer, period) record, creating a zeroed
// one if none exists.
func (s *state) upsertRecord(farmer types.FarmerID, period types.Period) *types.FarmerPeriodRecord {
	k := recordKey{farmer: farmer, period: period}
	if r, ok := s.records[k]; ok {
		return r
	}
	r := &types.FarmerPeriodRecord{Farmer: farmer, Period: period}
	s.records[k] = r
	return r
}

// snapshot flattens the state into its canonical serializable form.
func (s *state) snapshot() *types.StateSnapshot {
	snap := &types.StateSnapshot{
		Height:         s.height,
		NextClaimID:    s.nextClaimID,
		Paused:         s.paused,
		Admin:          s.admin,
		TotalProcessed: s.totalProcessed,
		TotalDisbursed: s.totalDisbursed,
		Claims:         make([]types.Claim, 0, len(s.claims)),
		Proofs:         make([]types.ClaimProof, 0, len(s.proofs)),
		Records:        make([]types.FarmerPeriodRecord, 0, len(s.records)),
	}
	for _, cl := range s.claims {
		snap.Claims = append(snap.Claims, *cl)
	}
	for _, p := range s.proofs {
		snap.Proofs = append(snap.Proofs, *p)
	}
	for _, r := range s.records {
		snap.Records = append(snap.Records, *r)
	}
	snap.Normalize()
	return snap
}

// restoreState rebuilds the keyed maps from a snapshot.
func restoreState(snap *types.StateSnapshot) *state {
	s := &state{
		height:         snap.Height,
		nextClaimID:    snap.NextClaimID,
		paused:         snap.Paused,
		admin:          snap.Admin,
		totalProcessed: snap.TotalProcessed,
		totalDisbursed: snap.TotalDisbursed,
		claims:         make(map[types.ClaimID]*types.Claim, len(snap.Claims)),
		proofs:         make(map[types.ClaimID]*types.ClaimProof, len(snap.Proofs)),
		records:        make(map[recordKey]*types.FarmerPeriodRecord, len(snap.Records)),
	}
	for i := range snap.Claims {
		cl := snap.Claims[i]
		s.claims[cl.ID] = &cl
	}
	for i := range snap.Proofs {
		p := snap.Proofs[i]
		s.proofs[p.ClaimID] = &p
	}
	for i := range snap.Records {
		r := snap.Records[i]
		s.records[recordKey{farmer: r.Farmer, period: r.Period}] = &r
	}
	return s
}
