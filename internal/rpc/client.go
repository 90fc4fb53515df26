package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// EthClient is the subset of the Ethereum RPC surface the auditor consumes.
type EthClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	Close()
}

// Compile-time check to ensure Client implements the EthClient interface.
var _ EthClient = (*Client)(nil)

// Client wraps the Ethereum RPC client with convenience methods for auditing.
// Every call is bounded by the configured per-call timeout; there is no retry.
type Client struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	timeout time.Duration
}

// NewClient creates a new RPC client connected to the given endpoint.
// timeout bounds each individual RPC call; zero disables the bound.
func NewClient(ctx context.Context, endpoint string, timeout time.Duration) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Client{
		eth:     ethclient.NewClient(rpcClient),
		rpc:     rpcClient,
		timeout: timeout,
	}, nil
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID retrieves the chain identifier of the connected node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	start := time.Now()
	id, err := c.eth.ChainID(ctx)
	observe("eth_chainId", start, err)
	return id, err
}

// LatestBlockNumber retrieves the latest known block number.
// It doubles as the connectivity check: a failure here means the endpoint
// is unreachable or not speaking the Ethereum JSON-RPC protocol.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	start := time.Now()
	num, err := c.eth.BlockNumber(ctx)
	observe("eth_blockNumber", start, err)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return num, nil
}

// GetLogs retrieves logs matching the given filter query.
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	start := time.Now()
	logs, err := c.eth.FilterLogs(ctx, query)
	observe("eth_getLogs", start, err)
	return logs, err
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func observe(method string, start time.Time, err error) {
	RPCMethodInc(method)
	RPCMethodDuration(method, time.Since(start))
	if err != nil {
		RPCMethodError(method)
	}
}
