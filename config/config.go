package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// CollabMode selects how the node reaches its collaborator services.
type CollabMode string

// Collaborator mode constants.
const (
	// CollabLocal runs memory-backed collaborators inside the node.
	CollabLocal CollabMode = "local"

	// CollabGRPC dials external collaborator services over gRPC.
	CollabGRPC CollabMode = "grpc"
)

// ValidCollabModes contains all valid collaborator modes.
var ValidCollabModes = []CollabMode{CollabLocal, CollabGRPC}

// IsValid returns true if the mode is valid.
func (m CollabMode) IsValid() bool {
	for _, valid := range ValidCollabModes {
		if m == valid {
			return true
		}
	}
	return false
}

// Config is the main configuration for a subsidy node.
type Config struct {
	Node          NodeConfig          `toml:"node"`
	Server        ServerConfig        `toml:"server"`
	Collaborators CollaboratorsConfig `toml:"collaborators"`
	Store         StoreConfig         `toml:"store"`
	Metrics       MetricsConfig       `toml:"metrics"`
	Logging       LoggingConfig       `toml:"logging"`
}

// NodeConfig contains node identity configuration.
type NodeConfig struct {
	// ChainID is the chain identifier the node expects at handshake.
	ChainID string `toml:"chain_id"`

	// Moniker is a human-readable node name used in logs.
	Moniker string `toml:"moniker"`
}

// ServerConfig contains the claim application server configuration.
type ServerConfig struct {
	// ListenAddr is the TCP address the application listens on for
	// the consensus engine (e.g., "127.0.0.1:26658").
	ListenAddr string `toml:"listen_addr"`
}

// CollaboratorsConfig selects and configures the collaborator backend.
type CollaboratorsConfig struct {
	// Mode is the collaborator backend ("local" or "grpc").
	Mode CollabMode `toml:"mode"`

	// Local configures the in-process collaborators.
	Local LocalCollaboratorsConfig `toml:"local"`

	// GRPC configures the remote collaborator clients.
	GRPC GRPCCollaboratorsConfig `toml:"grpc"`
}

// LocalCollaboratorsConfig configures the memory-backed collaborators.
type LocalCollaboratorsConfig struct {
	// Farmers are pre-registered farmer identities.
	Farmers []string `toml:"farmers"`

	// EligibilityDefault is the verdict for pairs without a rule.
	EligibilityDefault bool `toml:"eligibility_default"`

	// PoolBalance is the opening fund pool balance.
	PoolBalance uint64 `toml:"pool_balance"`

	// ServeAddr, when set, exposes the local collaborators over gRPC
	// so other nodes can share them. Empty disables the listener.
	ServeAddr string `toml:"serve_addr"`
}

// GRPCCollaboratorsConfig configures the remote collaborator clients.
type GRPCCollaboratorsConfig struct {
	// RegistryAddr is the farmer registry service address.
	RegistryAddr string `toml:"registry_addr"`

	// EligibilityAddr is the eligibility verifier service address.
	EligibilityAddr string `toml:"eligibility_addr"`

	// PoolAddr is the fund pool service address.
	PoolAddr string `toml:"pool_addr"`

	// AuditAddr is the audit logger service address.
	AuditAddr string `toml:"audit_addr"`

	// DialTimeout is the maximum time allowed for dialing a service.
	DialTimeout Duration `toml:"dial_timeout"`
}

// StoreConfig contains state snapshot storage configuration.
type StoreConfig struct {
	// Backend is the storage backend to use ("leveldb" or "memory").
	Backend string `toml:"backend"`

	// Path is the directory path for snapshot storage.
	Path string `toml:"path"`

	// RetainBlocks is how many recent heights to keep snapshots for.
	// Zero keeps everything.
	RetainBlocks uint64 `toml:"retain_blocks"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is the log output destination ("stdout", "stderr", or a file path).
	Output string `toml:"output"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ChainID: "subsidy-devnet-1",
			Moniker: "subsidy-node",
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:26658",
		},
		Collaborators: CollaboratorsConfig{
			Mode: CollabLocal,
			Local: LocalCollaboratorsConfig{
				Farmers:            []string{},
				EligibilityDefault: true,
				PoolBalance:        1_000_000_000,
			},
			GRPC: GRPCCollaboratorsConfig{
				RegistryAddr:    "127.0.0.1:26657",
				EligibilityAddr: "127.0.0.1:26657",
				PoolAddr:        "127.0.0.1:26657",
				AuditAddr:       "127.0.0.1:26657",
				DialTimeout:     Duration(3 * time.Second),
			},
		},
		Store: StoreConfig{
			Backend:      "leveldb",
			Path:         "data/state",
			RetainBlocks: 100,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "subsidy",
			ListenAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrEmptyChainID           = errors.New("chain_id cannot be empty")
	ErrEmptyListenAddr        = errors.New("listen_addr cannot be empty")
	ErrInvalidCollabMode      = errors.New("mode must be one of: local, grpc")
	ErrEmptyRegistryAddr      = errors.New("registry_addr cannot be empty in grpc mode")
	ErrEmptyEligibilityAddr   = errors.New("eligibility_addr cannot be empty in grpc mode")
	ErrEmptyPoolAddr          = errors.New("pool_addr cannot be empty in grpc mode")
	ErrEmptyAuditAddr         = errors.New("audit_addr cannot be empty in grpc mode")
	ErrInvalidDialTimeout     = errors.New("dial_timeout must be positive in grpc mode")
	ErrInvalidStoreBackend    = errors.New("store backend must be 'leveldb' or 'memory'")
	ErrEmptyStorePath         = errors.New("store path cannot be empty with the leveldb backend")
	ErrEmptyMetricsNamespace  = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be 'text' or 'json'")
	ErrEmptyLogOutput         = errors.New("log output cannot be empty")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("node config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Collaborators.Validate(); err != nil {
		return fmt.Errorf("collaborators config: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the node configuration for errors.
func (c *NodeConfig) Validate() error {
	if c.ChainID == "" {
		return ErrEmptyChainID
	}
	return nil
}

// Validate checks the server configuration for errors.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return ErrEmptyListenAddr
	}
	return nil
}

// Validate checks the collaborators configuration for errors.
func (c *CollaboratorsConfig) Validate() error {
	if !c.Mode.IsValid() {
		return ErrInvalidCollabMode
	}
	if c.Mode == CollabGRPC {
		if c.GRPC.RegistryAddr == "" {
			return ErrEmptyRegistryAddr
		}
		if c.GRPC.EligibilityAddr == "" {
			return ErrEmptyEligibilityAddr
		}
		if c.GRPC.PoolAddr == "" {
			return ErrEmptyPoolAddr
		}
		if c.GRPC.AuditAddr == "" {
			return ErrEmptyAuditAddr
		}
		if c.GRPC.DialTimeout.Duration() <= 0 {
			return ErrInvalidDialTimeout
		}
	}
	return nil
}

// Validate checks the store configuration for errors.
func (c *StoreConfig) Validate() error {
	if c.Backend != "leveldb" && c.Backend != "memory" {
		return ErrInvalidStoreBackend
	}
	if c.Backend == "leveldb" && c.Path == "" {
		return ErrEmptyStorePath
	}
	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled {
		if c.Namespace == "" {
			return ErrEmptyMetricsNamespace
		}
		if c.ListenAddr == "" {
			return ErrEmptyMetricsListenAddr
		}
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return ErrInvalidLogLevel
	}

	switch c.Format {
	case "text", "json":
		// Valid formats
	default:
		return ErrInvalidLogFormat
	}

	if c.Output == "" {
		return ErrEmptyLogOutput
	}

	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// EnsureDataDirs creates the data directories specified in the configuration.
func (c *Config) EnsureDataDirs() error {
	if c.Store.Backend == "leveldb" && c.Store.Path != "" {
		if err := os.MkdirAll(c.Store.Path, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", c.Store.Path, err)
		}
	}
	return nil
}
