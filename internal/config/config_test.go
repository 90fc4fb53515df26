package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casks-mutters/event-soundness/internal/common"
)

const testAddress = "0x6B175474E89094C44Da98b954EedeAC495271d0F"

func validTestConfig() *Config {
	return &Config{
		RPCURL:  "http://localhost:8545",
		Address: testAddress,
		ABIPath: "abi.json",
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := validTestConfig()
	cfg.ApplyDefaults()

	assert.Equal(t, uint64(2000), cfg.Step)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Nil(t, cfg.Metrics)
}

func TestConfig_ApplyDefaults_RPCFromEnv(t *testing.T) {
	t.Setenv(EnvRPCURL, "http://env-node:8545")

	cfg := &Config{Address: testAddress, ABIPath: "abi.json"}
	cfg.ApplyDefaults()

	assert.Equal(t, "http://env-node:8545", cfg.RPCURL)
}

func TestConfig_ApplyDefaults_DoesNotOverrideExplicit(t *testing.T) {
	t.Setenv(EnvRPCURL, "http://env-node:8545")

	cfg := validTestConfig()
	cfg.Step = 500
	cfg.Timeout = common.NewDuration(5 * time.Second)
	cfg.Concurrency = 8
	cfg.ApplyDefaults()

	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, uint64(500), cfg.Step)
	assert.Equal(t, 5*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestMetricsConfig_ApplyDefaults(t *testing.T) {
	cfg := validTestConfig()
	cfg.Metrics = &MetricsConfig{Enabled: true}
	cfg.ApplyDefaults()

	assert.Equal(t, ":9090", cfg.Metrics.ListenAddress)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestConfig_Validate(t *testing.T) {
	blk := func(n uint64) *uint64 { return &n }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing rpc url",
			mutate:  func(c *Config) { c.RPCURL = "" },
			wantErr: "rpc_url is required",
		},
		{
			name:    "missing address",
			mutate:  func(c *Config) { c.Address = "" },
			wantErr: "address is required",
		},
		{
			name:    "malformed address",
			mutate:  func(c *Config) { c.Address = "0x1234" },
			wantErr: "not a valid hex address",
		},
		{
			name:    "missing abi path",
			mutate:  func(c *Config) { c.ABIPath = "" },
			wantErr: "abi path is required",
		},
		{
			name: "from block greater than to block",
			mutate: func(c *Config) {
				c.FromBlock = blk(100)
				c.ToBlock = blk(50)
			},
			wantErr: ErrInvalidRange.Error(),
		},
		{
			name: "equal from and to block is valid",
			mutate: func(c *Config) {
				c.FromBlock = blk(100)
				c.ToBlock = blk(100)
			},
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Concurrency = -1 },
			wantErr: "concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
