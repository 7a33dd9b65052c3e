package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/subsidy/config"
	"github.com/blockberries/subsidy/types"
)

var (
	initChainID string
	initMoniker string
	initAdmin   string
	initFarmers []string
	initDataDir string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new node",
	Long: `Initialize a new subsidy node with configuration and genesis files.

This command creates:
  - config.toml: Node configuration
  - genesis.json: Genesis document for the consensus engine
  - data/: Directory for committed state snapshots

Example:
  subsidyd init --chain-id subsidy-mainnet-1 --admin gov-agency`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initChainID, "chain-id", "subsidy-devnet-1", "chain ID for the network")
	initCmd.Flags().StringVar(&initMoniker, "moniker", "", "node moniker (human-readable name)")
	initCmd.Flags().StringVar(&initAdmin, "admin", "", "fund administrator identity (required)")
	initCmd.Flags().StringSliceVar(&initFarmers, "farmers", nil, "pre-registered farmers for the local collaborators")
	initCmd.Flags().StringVar(&initDataDir, "data-dir", ".", "directory for configuration and data")
	initCmd.Flags().BoolVar(&initForce, "force", false, "override existing configuration")
	_ = initCmd.MarkFlagRequired("admin")
}

// genesisFile is the operator-facing genesis document layout. The
// consensus engine carries app_state to the application verbatim.
type genesisFile struct {
	ChainID       string          `json:"chain_id"`
	GenesisTime   time.Time       `json:"genesis_time"`
	InitialHeight uint64          `json:"initial_height"`
	AppState      json.RawMessage `json:"app_state"`
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir := initDataDir
	if dataDir == "" {
		dataDir = "."
	}

	configPath := filepath.Join(dataDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config.toml already exists; use --force to override")
	}

	moniker := initMoniker
	if moniker == "" {
		hostname, err := os.Hostname()
		if err != nil {
			moniker = "subsidy-node"
		} else {
			moniker = hostname
		}
	}

	genesis := types.GenesisState{Admin: types.FarmerID(initAdmin)}
	if err := genesis.Validate(); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.Node.ChainID = initChainID
	cfg.Node.Moniker = moniker
	cfg.Collaborators.Local.Farmers = initFarmers
	cfg.Store.Path = filepath.Join(dataDir, "data", "state")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	if err := config.WriteConfigFile(configPath, cfg); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	genesisPath := filepath.Join(dataDir, "genesis.json")
	if err := writeGenesisFile(genesisPath, initChainID, genesis); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	fmt.Printf("Initialized subsidy node\n")
	fmt.Printf("  Chain ID:  %s\n", initChainID)
	fmt.Printf("  Moniker:   %s\n", moniker)
	fmt.Printf("  Admin:     %s\n", initAdmin)
	fmt.Printf("  Config:    %s\n", configPath)
	fmt.Printf("  Genesis:   %s\n", genesisPath)
	fmt.Printf("  Data dir:  %s\n", cfg.Store.Path)

	return nil
}

func writeGenesisFile(path, chainID string, state types.GenesisState) error {
	appState, err := state.AppStateBytes()
	if err != nil {
		return err
	}
	doc := genesisFile{
		ChainID:       chainID,
		GenesisTime:   time.Now().UTC(),
		InitialHeight: 1,
		AppState:      appState,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis document: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
