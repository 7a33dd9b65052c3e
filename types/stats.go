package types

import "github.com/blockberries/cramberry/pkg/cramberry"

// Stats is the aggregate counter view of the engine state, served to
// operators at the /stats query path.
type Stats struct {
	Height         uint64   `cramberry:"1" json:"height"`
	NextClaimID    ClaimID  `cramberry:"2" json:"next_claim_id"`
	PendingClaims  uint32   `cramberry:"3" json:"pending_claims"`
	TotalProcessed uint64   `cramberry:"4" json:"total_processed"`
	TotalDisbursed Amount   `cramberry:"5" json:"total_disbursed"`
	Paused         bool     `cramberry:"6" json:"paused"`
	Admin          FarmerID `cramberry:"7" json:"admin"`
}

// EncodeStats returns the canonical encoding of the stats view.
func EncodeStats(s Stats) []byte {
	data, _ := cramberry.Marshal(&s) // flat scalar struct always marshals
	return data
}

// DecodeStats parses an encoded stats view.
func DecodeStats(data []byte) (Stats, error) {
	var s Stats
	if err := cramberry.Unmarshal(data, &s); err != nil {
		return Stats{}, err
	}
	return s, nil
}
