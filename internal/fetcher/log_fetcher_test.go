package fetcher

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/casks-mutters/event-soundness/internal/logger"
)

type mockEthClient struct {
	mock.Mock
}

func (m *mockEthClient) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	id, _ := args.Get(0).(*big.Int)
	return id, args.Error(1)
}

func (m *mockEthClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockEthClient) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	args := m.Called(ctx, query)
	logs, _ := args.Get(0).([]types.Log)
	return logs, args.Error(1)
}

func (m *mockEthClient) Close() {
	m.Called()
}

var testAddress = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

func testLog(blockNum uint64) types.Log {
	return types.Log{
		Address:     testAddress,
		BlockNumber: blockNum,
		Topics:      []ethcommon.Hash{ethcommon.HexToHash("0xaaaa")},
	}
}

// fromBlockIs matches a FilterQuery by its FromBlock.
func fromBlockIs(from uint64) any {
	return mock.MatchedBy(func(q ethereum.FilterQuery) bool {
		return q.FromBlock.Uint64() == from
	})
}

func newTestFetcher(concurrency int, mockRPC *mockEthClient) *LogFetcher {
	return New(Config{
		Address:     testAddress,
		Step:        10,
		Concurrency: concurrency,
	}, mockRPC, logger.NewNopLogger())
}

func TestLogFetcher_FetchAll_Sequential(t *testing.T) {
	mockRPC := new(mockEthClient)
	lf := newTestFetcher(1, mockRPC)

	mockRPC.On("GetLogs", mock.Anything, fromBlockIs(100)).Return([]types.Log{testLog(105)}, nil).Once()
	mockRPC.On("GetLogs", mock.Anything, fromBlockIs(110)).Return([]types.Log{testLog(110), testLog(114)}, nil).Once()
	mockRPC.On("GetLogs", mock.Anything, fromBlockIs(120)).Return(nil, nil).Once()

	logs, err := lf.FetchAll(context.Background(), 100, 125)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, uint64(105), logs[0].BlockNumber)
	require.Equal(t, uint64(110), logs[1].BlockNumber)
	require.Equal(t, uint64(114), logs[2].BlockNumber)

	mockRPC.AssertExpectations(t)
}

func TestLogFetcher_FetchAll_QueryShape(t *testing.T) {
	mockRPC := new(mockEthClient)
	lf := newTestFetcher(1, mockRPC)

	mockRPC.On("GetLogs", mock.Anything, mock.MatchedBy(func(q ethereum.FilterQuery) bool {
		return len(q.Addresses) == 1 &&
			q.Addresses[0] == testAddress &&
			q.FromBlock.Uint64() == 50 &&
			q.ToBlock.Uint64() == 59
	})).Return(nil, nil).Once()

	_, err := lf.FetchAll(context.Background(), 50, 59)
	require.NoError(t, err)

	mockRPC.AssertExpectations(t)
}

func TestLogFetcher_FetchAll_ChunkFailureAbortsRun(t *testing.T) {
	mockRPC := new(mockEthClient)
	lf := newTestFetcher(1, mockRPC)

	mockRPC.On("GetLogs", mock.Anything, fromBlockIs(0)).Return([]types.Log{testLog(3)}, nil).Once()
	mockRPC.On("GetLogs", mock.Anything, fromBlockIs(10)).Return(nil, errors.New("boom")).Once()

	logs, err := lf.FetchAll(context.Background(), 0, 29)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFetch)
	require.Contains(t, err.Error(), "blocks 10-19")
	require.Nil(t, logs, "no partial results on failure")

	// the third chunk is never queried
	mockRPC.AssertNotCalled(t, "GetLogs", mock.Anything, fromBlockIs(20))
}

func TestLogFetcher_FetchAll_ConcurrentOrderIsDeterministic(t *testing.T) {
	mockRPC := new(mockEthClient)
	lf := newTestFetcher(4, mockRPC)

	for from := uint64(0); from < 100; from += 10 {
		mockRPC.On("GetLogs", mock.Anything, fromBlockIs(from)).
			Return([]types.Log{testLog(from)}, nil).Once()
	}

	logs, err := lf.FetchAll(context.Background(), 0, 99)
	require.NoError(t, err)
	require.Len(t, logs, 10)

	// results arrive in chunk order no matter which fetch finished first
	for i, lg := range logs {
		require.Equal(t, uint64(i*10), lg.BlockNumber)
	}

	mockRPC.AssertExpectations(t)
}

func TestLogFetcher_FetchAll_ConcurrentFailureSurfaces(t *testing.T) {
	mockRPC := new(mockEthClient)
	lf := newTestFetcher(4, mockRPC)

	mockRPC.On("GetLogs", mock.Anything, fromBlockIs(20)).Return(nil, errors.New("rate limited"))
	mockRPC.On("GetLogs", mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	_, err := lf.FetchAll(context.Background(), 0, 99)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFetch)
}

func TestLogFetcher_FetchAll_SingleChunk(t *testing.T) {
	mockRPC := new(mockEthClient)
	lf := newTestFetcher(1, mockRPC)

	mockRPC.On("GetLogs", mock.Anything, fromBlockIs(42)).Return(nil, nil).Once()

	logs, err := lf.FetchAll(context.Background(), 42, 42)
	require.NoError(t, err)
	require.Empty(t, logs)
}
