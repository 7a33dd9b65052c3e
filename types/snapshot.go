package types

import (
	"crypto/sha256"
	"sort"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// StateSnapshot is a complete, canonical image of the claim engine state.
// It is the unit of persistence, state sync, and app-hash computation, so
// its encoding must be deterministic: Normalize sorts every slice into its
// canonical order before the snapshot is marshaled.
type StateSnapshot struct {
	Height         uint64               `cramberry:"1"`
	NextClaimID    ClaimID              `cramberry:"2"`
	Paused         bool                 `cramberry:"3"`
	Admin          FarmerID             `cramberry:"4"`
	TotalProcessed uint64               `cramberry:"5"`
	TotalDisbursed Amount               `cramberry:"6"`
	Claims         []Claim              `cramberry:"7"`
	Proofs         []ClaimProof         `cramberry:"8"`
	Records        []FarmerPeriodRecord `cramberry:"9"`
}

// Normalize sorts the snapshot slices into canonical order: claims and
// proofs ascending by claim ID, records ascending by (farmer, period).
func (s *StateSnapshot) Normalize() {
	sort.Slice(s.Claims, func(i, j int) bool {
		return s.Claims[i].ID < s.Claims[j].ID
	})
	sort.Slice(s.Proofs, func(i, j int) bool {
		return s.Proofs[i].ClaimID < s.Proofs[j].ClaimID
	})
	sort.Slice(s.Records, func(i, j int) bool {
		if s.Records[i].Farmer != s.Records[j].Farmer {
			return s.Records[i].Farmer < s.Records[j].Farmer
		}
		return s.Records[i].Period < s.Records[j].Period
	})
}

// Bytes returns the canonical encoding of the snapshot.
func (s *StateSnapshot) Bytes() []byte {
	s.Normalize()
	data, _ := cramberry.Marshal(s) // snapshot structs always marshal
	return data
}

// Digest returns the sha256 of the canonical encoding. The application
// reports it as the app hash after every executed block.
func (s *StateSnapshot) Digest() [32]byte {
	return sha256.Sum256(s.Bytes())
}

// DecodeSnapshot parses a canonical snapshot encoding.
func DecodeSnapshot(data []byte) (*StateSnapshot, error) {
	var s StateSnapshot
	if err := cramberry.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
