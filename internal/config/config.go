package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/casks-mutters/event-soundness/internal/common"
	"github.com/casks-mutters/event-soundness/internal/logger"
)

// EnvRPCURL is the environment variable consulted when --rpc is not given.
const EnvRPCURL = "RPC_URL"

// ErrInvalidRange is returned when the resolved from-block is greater than the to-block.
var ErrInvalidRange = errors.New("from-block must be <= to-block")

// Config represents the complete configuration for a soundness audit run.
// It is built in main from flags, an optional config file and the environment,
// and passed down explicitly; there is no module-level state.
type Config struct {
	// RPCURL is the Ethereum RPC endpoint URL
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// Address is the contract address to audit
	Address string `yaml:"address" json:"address" toml:"address"`

	// ABIPath is the path to the ABI JSON file with the event definitions
	ABIPath string `yaml:"abi" json:"abi" toml:"abi"`

	// FromBlock is the inclusive start block; nil means latest-5000 (floored at 0)
	FromBlock *uint64 `yaml:"from_block,omitempty" json:"from_block,omitempty" toml:"from_block,omitempty"`

	// ToBlock is the inclusive end block; nil means the latest known block
	ToBlock *uint64 `yaml:"to_block,omitempty" json:"to_block,omitempty" toml:"to_block,omitempty"`

	// Step is the block range per eth_getLogs call
	Step uint64 `yaml:"step" json:"step" toml:"step"`

	// ExpectedEventsPath is an optional path to a JSON array of required event names
	ExpectedEventsPath string `yaml:"expected_events,omitempty" json:"expected_events,omitempty" toml:"expected_events,omitempty"`

	// JSONOutput also emits a machine-readable summary when true
	JSONOutput bool `yaml:"json" json:"json" toml:"json"`

	// Timeout bounds each individual RPC call
	Timeout common.Duration `yaml:"timeout" json:"timeout" toml:"timeout"`

	// Concurrency is the maximum number of chunk fetches in flight (1 = sequential)
	Concurrency int `yaml:"concurrency" json:"concurrency" toml:"concurrency"`

	// Logging contains logging configuration
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains optional Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn" or "error"
	Level string `yaml:"level" json:"level" toml:"level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// Enabled controls whether the metrics server runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the host:port the metrics server binds to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path serving the metrics
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	if c.RPCURL == "" {
		c.RPCURL = os.Getenv(EnvRPCURL)
	}
	if c.Step == 0 {
		c.Step = 2000
	}
	if c.Timeout.Duration == 0 {
		c.Timeout = common.NewDuration(30 * time.Second)
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks that the configuration is complete and well-formed.
// Range validation against the chain head happens at runtime, not here.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required (set --rpc or %s)", EnvRPCURL)
	}
	if c.Address == "" {
		return errors.New("address is required")
	}
	if !ethcommon.IsHexAddress(c.Address) {
		return fmt.Errorf("address %q is not a valid hex address", c.Address)
	}
	if c.ABIPath == "" {
		return errors.New("abi path is required")
	}
	if c.FromBlock != nil && c.ToBlock != nil && *c.FromBlock > *c.ToBlock {
		return ErrInvalidRange
	}
	if c.Timeout.Duration < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(c.Logging.Level)]; !valid {
		return fmt.Errorf("logging.level: must be one of: debug, info, warn, error")
	}
	return nil
}
