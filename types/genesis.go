package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GenesisState is the application slice of the genesis document
// (GenesisDoc.AppState, JSON-encoded). An absent or empty AppState
// yields the zero GenesisState: an unpaused engine with no admin, in
// which every admin-gated operation fails NotAuthorized.
type GenesisState struct {
	Admin  FarmerID `json:"admin"`
	Paused bool     `json:"paused,omitempty"`
}

// ErrGenesisAdminNull rejects an explicitly provided genesis that
// names the null/burn identity as admin.
var ErrGenesisAdminNull = errors.New("genesis admin cannot be the null identity")

// Validate checks an explicitly provided genesis state.
func (g GenesisState) Validate() error {
	if g.Admin.IsNull() {
		return ErrGenesisAdminNull
	}
	return nil
}

// ParseGenesisState decodes the AppState bytes of a genesis document.
// Empty input is a valid zero state.
func ParseGenesisState(appState []byte) (GenesisState, error) {
	var g GenesisState
	if len(appState) == 0 {
		return g, nil
	}
	if err := json.Unmarshal(appState, &g); err != nil {
		return g, fmt.Errorf("parsing genesis app state: %w", err)
	}
	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}

// AppStateBytes encodes the genesis state for a genesis document.
func (g GenesisState) AppStateBytes() ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding genesis app state: %w", err)
	}
	return data, nil
}
