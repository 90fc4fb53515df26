package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/casks-mutters/event-soundness/internal/logger"
	"github.com/casks-mutters/event-soundness/internal/rpc"
)

// ErrFetch marks a failed chunk query. The whole fetch fails with it; no
// partial results are returned and nothing is retried.
var ErrFetch = errors.New("log fetch failed")

// Config contains configuration for the LogFetcher.
type Config struct {
	// Address is the contract whose logs are fetched
	Address ethcommon.Address

	// Step is the block range per eth_getLogs call
	Step uint64

	// Concurrency is the maximum number of chunk fetches in flight.
	// Values <= 1 mean strictly sequential fetching.
	Concurrency int
}

// LogFetcher retrieves all logs for an address over a block range, one
// chunk at a time to stay under provider result limits.
type LogFetcher struct {
	cfg Config
	rpc rpc.EthClient
	log *logger.Logger
}

// New creates a LogFetcher.
func New(cfg Config, rpcClient rpc.EthClient, log *logger.Logger) *LogFetcher {
	if cfg.Step == 0 {
		cfg.Step = 1
	}
	return &LogFetcher{
		cfg: cfg,
		rpc: rpcClient,
		log: log,
	}
}

// FetchAll fetches logs for [fromBlock, toBlock] inclusive and returns them
// concatenated in chunk order. The order is deterministic regardless of how
// many fetches run concurrently.
func (lf *LogFetcher) FetchAll(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	chunks := ChunkRanges(fromBlock, toBlock, lf.cfg.Step)
	lf.log.Debugf("fetching %d chunk(s) for blocks %d-%d (step=%d, concurrency=%d)",
		len(chunks), fromBlock, toBlock, lf.cfg.Step, lf.cfg.Concurrency)

	results := make([][]types.Log, len(chunks))

	if lf.cfg.Concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(lf.cfg.Concurrency)

		for i, chunk := range chunks {
			g.Go(func() error {
				logs, err := lf.fetchChunk(gctx, chunk)
				if err != nil {
					return err
				}
				results[i] = logs
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, chunk := range chunks {
			logs, err := lf.fetchChunk(ctx, chunk)
			if err != nil {
				return nil, err
			}
			results[i] = logs
		}
	}

	var all []types.Log
	for _, logs := range results {
		all = append(all, logs...)
	}

	LogsFetchedAdd(len(all))
	return all, nil
}

// fetchChunk issues a single eth_getLogs query for one sub-range.
func (lf *LogFetcher) fetchChunk(ctx context.Context, chunk Range) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		Addresses: []ethcommon.Address{lf.cfg.Address},
		FromBlock: new(big.Int).SetUint64(chunk.From),
		ToBlock:   new(big.Int).SetUint64(chunk.To),
	}

	logs, err := lf.rpc.GetLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: blocks %d-%d: %v", ErrFetch, chunk.From, chunk.To, err)
	}

	ChunksFetchedInc()
	lf.log.Debugf("fetched blocks %d-%d: %d log(s)", chunk.From, chunk.To, len(logs))
	return logs, nil
}
