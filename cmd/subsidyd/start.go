package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockberries/subsidy/config"
	"github.com/blockberries/subsidy/logging"
	"github.com/blockberries/subsidy/node"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node",
	Long: `Start the subsidy node with the specified configuration.

The node serves the claim application to the consensus engine until
interrupted (Ctrl+C) or a termination signal arrives.

Example:
  subsidyd start --config config.toml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	log, closeLog, err := node.BuildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	if closeLog != nil {
		defer func() { _ = closeLog() }()
	}

	log.Info("starting subsidyd",
		"version", Version,
		"chain_id", cfg.Node.ChainID,
	)

	n, err := node.New(cfg, node.WithLogger(log))
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() { serveErr <- n.Wait() }()

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			_ = n.Stop()
			return fmt.Errorf("node failed: %w", err)
		}
	}

	if err := n.Stop(); err != nil {
		log.Error("error stopping node", logging.Error(err))
		return fmt.Errorf("stopping node: %w", err)
	}

	log.Info("node stopped")
	return nil
}
