// Package node assembles a complete subsidy application node from
// configuration: logger, metrics, snapshot store, collaborator
// backends, the claim application, and the listeners that serve it
// to the consensus engine.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	bapigrpc "github.com/blockberries/bapi/grpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/app"
	"github.com/blockberries/subsidy/config"
	subsidygrpc "github.com/blockberries/subsidy/grpc"
	"github.com/blockberries/subsidy/local"
	"github.com/blockberries/subsidy/logging"
	"github.com/blockberries/subsidy/metrics"
	"github.com/blockberries/subsidy/store"
	"github.com/blockberries/subsidy/types"
)

// Node lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("node already started")
	ErrNotStarted     = errors.New("node not started")
)

// Node wires the subsidy application to its runtime dependencies and
// runs the serving listeners.
type Node struct {
	cfg *config.Config
	log *logging.Logger

	store       store.Store
	metrics     metrics.Metrics
	promHandler http.Handler
	collab      subsidy.Collaborators
	app         *app.App

	closeCollab func() error
	closeLog    func() error

	bapiSrv    *grpc.Server
	bapiLis    net.Listener
	collabSrv  *grpc.Server
	collabLis  net.Listener
	metricsSrv *http.Server
	metricsLis net.Listener

	eg      *errgroup.Group
	started bool
	mu      sync.RWMutex
}

// Option configures a Node before its components are built.
type Option func(*Node)

// WithLogger replaces the logger built from the logging configuration.
func WithLogger(log *logging.Logger) Option {
	return func(n *Node) {
		n.log = log
	}
}

// WithCollaborators replaces the collaborator bundle built from the
// collaborators configuration.
func WithCollaborators(collab subsidy.Collaborators) Option {
	return func(n *Node) {
		n.collab = collab
	}
}

// New builds a node from the configuration. The configuration must
// already be validated. No listener is bound until Start.
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	n := &Node{cfg: cfg}

	for _, opt := range opts {
		opt(n)
	}

	if n.log == nil {
		log, closer, err := BuildLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
		n.log = log
		n.closeLog = closer
	}

	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		n.metrics = prom
		n.promHandler = prom.HTTPHandler()
	} else {
		n.metrics = metrics.NewNopMetrics()
	}

	st, err := buildStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("building store: %w", err)
	}
	n.store = st

	if n.collab.Registry == nil {
		collab, closer, err := buildCollaborators(cfg.Collaborators, n.log)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("building collaborators: %w", err)
		}
		n.collab = collab
		n.closeCollab = closer
	}

	application, err := app.New(st, n.collab,
		app.WithLogger(n.log),
		app.WithMetrics(n.metrics),
		app.WithChainID(cfg.Node.ChainID),
		app.WithRetainBlocks(cfg.Store.RetainBlocks),
	)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating application: %w", err)
	}
	n.app = application

	return n, nil
}

// Start binds every configured listener and begins serving. All
// listeners are bound before any serving goroutine launches so a bad
// address fails the whole start.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrAlreadyStarted
	}

	n.log.Info("starting node",
		"moniker", n.cfg.Node.Moniker,
		"chain_id", n.cfg.Node.ChainID,
		"collaborators", string(n.cfg.Collaborators.Mode),
	)

	bapiLis, err := net.Listen("tcp", n.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", n.cfg.Server.ListenAddr, err)
	}

	var collabLis net.Listener
	if serveAddr := n.cfg.Collaborators.Local.ServeAddr; n.cfg.Collaborators.Mode == config.CollabLocal && serveAddr != "" {
		collabLis, err = net.Listen("tcp", serveAddr)
		if err != nil {
			_ = bapiLis.Close()
			return fmt.Errorf("listening on %s: %w", serveAddr, err)
		}
	}

	var metricsLis net.Listener
	if n.cfg.Metrics.Enabled {
		metricsLis, err = net.Listen("tcp", n.cfg.Metrics.ListenAddr)
		if err != nil {
			_ = bapiLis.Close()
			if collabLis != nil {
				_ = collabLis.Close()
			}
			return fmt.Errorf("listening on %s: %w", n.cfg.Metrics.ListenAddr, err)
		}
	}

	eg := &errgroup.Group{}

	n.bapiLis = bapiLis
	n.bapiSrv = grpc.NewServer()
	bapigrpc.NewGRPCServer(n.app).Register(n.bapiSrv)
	eg.Go(func() error {
		n.log.Info("serving consensus interface", logging.Address(bapiLis.Addr().String()))
		if err := n.bapiSrv.Serve(bapiLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("consensus server: %w", err)
		}
		return nil
	})

	if collabLis != nil {
		n.collabLis = collabLis
		n.collabSrv = grpc.NewServer()
		subsidygrpc.NewServer(n.collab).Register(n.collabSrv)
		eg.Go(func() error {
			n.log.Info("serving collaborators", logging.Address(collabLis.Addr().String()))
			if err := n.collabSrv.Serve(collabLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("collaborator server: %w", err)
			}
			return nil
		})
	}

	if metricsLis != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", n.promHandler)
		n.metricsLis = metricsLis
		n.metricsSrv = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		eg.Go(func() error {
			n.log.Info("serving metrics", logging.Address(metricsLis.Addr().String()))
			if err := n.metricsSrv.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	n.eg = eg
	n.started = true
	return nil
}

// Stop shuts the listeners down gracefully and releases every
// resource the node holds.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		return ErrNotStarted
	}

	n.log.Info("stopping node")

	var errs []error

	n.bapiSrv.GracefulStop()
	if n.collabSrv != nil {
		n.collabSrv.GracefulStop()
	}
	if n.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down metrics server: %w", err))
		}
		cancel()
	}

	if err := n.eg.Wait(); err != nil {
		errs = append(errs, err)
	}

	if err := n.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	if n.closeCollab != nil {
		if err := n.closeCollab(); err != nil {
			errs = append(errs, fmt.Errorf("closing collaborator connections: %w", err))
		}
	}
	if n.closeLog != nil {
		if err := n.closeLog(); err != nil {
			errs = append(errs, fmt.Errorf("closing log output: %w", err))
		}
	}

	n.started = false
	return errors.Join(errs...)
}

// Wait blocks until every serving goroutine has exited. It returns
// the first serve failure, or nil after a clean Stop.
func (n *Node) Wait() error {
	n.mu.RLock()
	eg := n.eg
	n.mu.RUnlock()

	if eg == nil {
		return ErrNotStarted
	}
	return eg.Wait()
}

// IsRunning returns whether the node is running.
func (n *Node) IsRunning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.started
}

// App returns the claim application, for in-process connections.
func (n *Node) App() *app.App {
	return n.app
}

// BAPIAddr returns the bound consensus listener address, empty
// before Start.
func (n *Node) BAPIAddr() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.bapiLis == nil {
		return ""
	}
	return n.bapiLis.Addr().String()
}

// CollabAddr returns the bound collaborator listener address, empty
// when the dev collaborator server is disabled.
func (n *Node) CollabAddr() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.collabLis == nil {
		return ""
	}
	return n.collabLis.Addr().String()
}

// MetricsAddr returns the bound metrics listener address, empty when
// metrics serving is disabled.
func (n *Node) MetricsAddr() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.metricsLis == nil {
		return ""
	}
	return n.metricsLis.Addr().String()
}

// BuildLogger constructs the logger described by the logging
// configuration. The returned closer is non-nil when the output is a
// file.
func BuildLogger(cfg config.LoggingConfig) (*logging.Logger, func() error, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	var (
		w      io.Writer
		closer func() error
	)
	switch cfg.Output {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log output: %w", err)
		}
		w = f
		closer = f.Close
	}

	switch cfg.Format {
	case "json":
		return logging.NewJSONLogger(w, level), closer, nil
	default:
		return logging.NewTextLogger(w, level), closer, nil
	}
}

// buildStore constructs the snapshot store described by the store
// configuration.
func buildStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "leveldb":
		return store.NewLevelDBStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// buildCollaborators constructs the collaborator bundle described by
// the collaborators configuration. In grpc mode the returned closer
// releases the client connections.
func buildCollaborators(cfg config.CollaboratorsConfig, log *logging.Logger) (subsidy.Collaborators, func() error, error) {
	switch cfg.Mode {
	case config.CollabLocal:
		farmers := make([]types.FarmerID, 0, len(cfg.Local.Farmers))
		for _, f := range cfg.Local.Farmers {
			farmers = append(farmers, types.FarmerID(f))
		}
		collab := subsidy.Collaborators{
			Registry:    local.NewRegistry(farmers...),
			Eligibility: local.NewEligibility(cfg.Local.EligibilityDefault),
			Pool:        local.NewPool(types.Amount(cfg.Local.PoolBalance)),
			Audit:       local.NewAuditLogWithLogger(log),
		}
		return collab, nil, nil

	case config.CollabGRPC:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GRPC.DialTimeout.Duration())
		defer cancel()
		return subsidygrpc.DialCollaborators(ctx, subsidygrpc.Addrs{
			Registry:    cfg.GRPC.RegistryAddr,
			Eligibility: cfg.GRPC.EligibilityAddr,
			Pool:        cfg.GRPC.PoolAddr,
			Audit:       cfg.GRPC.AuditAddr,
		}, grpc.WithTransportCredentials(insecure.NewCredentials()))

	default:
		return subsidy.Collaborators{}, nil, fmt.Errorf("unknown collaborator mode %q", cfg.Mode)
	}
}
