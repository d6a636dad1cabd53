package batch_test

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/prize-indexer/internal/batch"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/mocks"
)

var (
	strategyA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	strategyB   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	collectionX = common.HexToAddress("0x0000000000000000000000000000000000000011")
	collectionY = common.HexToAddress("0x0000000000000000000000000000000000000022")
)

// stubCodec encodes the collection address as call data; the "chain" answers with
// comma separated ids keyed by correlation id
type stubCodec struct{}

func (stubCodec) EncodeRemaining(standard domain.AssetStandard, collection common.Address) ([]byte, error) {
	return []byte(standard.String() + ":" + collection.Hex()), nil
}

func (stubCodec) DecodeRemaining(_ domain.AssetStandard, data []byte) ([]*big.Int, error) {
	if len(data) == 0 {
		return []*big.Int{}, nil
	}
	if string(data) == "bad" {
		return nil, fmt.Errorf("%w: bad data", domain.ErrDecodeFailure)
	}
	return domain.ParseItemIDs(strings.Split(string(data), ","))
}

func ids(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

func testPools() []domain.PoolConfig {
	return []domain.PoolConfig{
		{
			ID:                      "pool-a",
			StrategyContractAddress: strategyA,
			InitialInventory: []domain.InventoryEntry{
				{CollectionAddress: collectionX, Standard: domain.StandardERC721, ItemIDs: ids(1, 2, 3)},
				{CollectionAddress: collectionY, Standard: domain.StandardERC1155, ItemIDs: ids(5)},
			},
		},
		{
			ID:                      "pool-b",
			StrategyContractAddress: strategyB,
			InitialInventory: []domain.InventoryEntry{
				{CollectionAddress: collectionX, Standard: domain.StandardERC721, ItemIDs: ids(7, 8)},
				{CollectionAddress: collectionY, Standard: domain.StandardERC1155, ItemIDs: ids(9)},
			},
		},
	}
}

// chainAnswers holds what each correlation id returns
var chainAnswers = map[string]string{
	batch.CorrelationID("pool-a", collectionX): "3,2",
	batch.CorrelationID("pool-a", collectionY): "",
	batch.CorrelationID("pool-b", collectionX): "8",
	batch.CorrelationID("pool-b", collectionY): "9",
}

// answer returns the results of calls in reverse order
func answer(calls []batch.Call) []batch.CallResult {
	results := make([]batch.CallResult, 0, len(calls))
	for i := len(calls) - 1; i >= 0; i-- {
		results = append(results, batch.CallResult{ID: calls[i].ID, Data: []byte(chainAnswers[calls[i].ID])})
	}
	return results
}

func TestAggregator_Remaining(t *testing.T) {
	for _, batchSize := range []int{1, 3, 4, 50} {
		t.Run(fmt.Sprintf("batch size %d", batchSize), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			batcher := mocks.NewMockBatcher(ctrl)

			var sizes []int
			batcher.EXPECT().Execute(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, calls []batch.Call) ([]batch.CallResult, error) {
					sizes = append(sizes, len(calls))
					for _, call := range calls {
						if strings.HasPrefix(call.ID, "pool-a/") {
							assert.Equal(t, strategyA, call.Target)
						} else {
							assert.Equal(t, strategyB, call.Target)
						}
					}
					return answer(calls), nil
				}).AnyTimes()

			remaining, err := batch.NewAggregator(batcher, stubCodec{}, batchSize).Remaining(context.Background(), testPools())
			require.NoError(t, err)

			assert.Equal(t, domain.RemainingByPool{
				"pool-a": {collectionX: ids(2, 3), collectionY: ids()},
				"pool-b": {collectionX: ids(8), collectionY: ids(9)},
			}, remaining)

			total := 0
			for _, size := range sizes {
				assert.LessOrEqual(t, size, batchSize)
				total += size
			}
			assert.Equal(t, 4, total)
		})
	}
}

func TestAggregator_Remaining_EmptyInventory(t *testing.T) {
	ctrl := gomock.NewController(t)
	batcher := mocks.NewMockBatcher(ctrl)

	remaining, err := batch.NewAggregator(batcher, stubCodec{}, 0).Remaining(context.Background(), []domain.PoolConfig{{ID: "empty"}})
	require.NoError(t, err)
	assert.Equal(t, domain.RemainingByPool{"empty": {}}, remaining)
}

func TestAggregator_Remaining_RetriesWithHalfBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	batcher := mocks.NewMockBatcher(ctrl)

	gomock.InOrder(
		batcher.EXPECT().Execute(gomock.Any(), gomock.Len(4)).Return(nil, fmt.Errorf("%w: response too large", domain.ErrUpstreamUnavailable)),
		batcher.EXPECT().Execute(gomock.Any(), gomock.Len(2)).DoAndReturn(func(_ context.Context, calls []batch.Call) ([]batch.CallResult, error) {
			return answer(calls), nil
		}).Times(2),
	)

	remaining, err := batch.NewAggregator(batcher, stubCodec{}, 4).Remaining(context.Background(), testPools())
	require.NoError(t, err)
	assert.Equal(t, ids(2, 3), remaining["pool-a"][collectionX])
	assert.Equal(t, ids(9), remaining["pool-b"][collectionY])
}

func TestAggregator_Remaining_Failures(t *testing.T) {
	idA := batch.CorrelationID("pool-a", collectionX)

	tests := []struct {
		name    string
		execute func(ctx context.Context, calls []batch.Call) ([]batch.CallResult, error)
		wantErr error
	}{
		{
			name: "retry also fails",
			execute: func(context.Context, []batch.Call) ([]batch.CallResult, error) {
				return nil, fmt.Errorf("%w: down", domain.ErrUpstreamUnavailable)
			},
			wantErr: domain.ErrUpstreamUnavailable,
		},
		{
			name: "canceled context is not retried",
			execute: func(context.Context, []batch.Call) ([]batch.CallResult, error) {
				return nil, context.Canceled
			},
			wantErr: domain.ErrUpstreamUnavailable,
		},
		{
			name: "missing result",
			execute: func(_ context.Context, calls []batch.Call) ([]batch.CallResult, error) {
				return answer(calls)[1:], nil
			},
			wantErr: domain.ErrDecodeFailure,
		},
		{
			name: "unexpected result id",
			execute: func(_ context.Context, calls []batch.Call) ([]batch.CallResult, error) {
				return append(answer(calls), batch.CallResult{ID: "pool-z/" + collectionX.Hex()}), nil
			},
			wantErr: domain.ErrDecodeFailure,
		},
		{
			name: "duplicate result id",
			execute: func(_ context.Context, calls []batch.Call) ([]batch.CallResult, error) {
				results := answer(calls)
				return append(results, results[0]), nil
			},
			wantErr: domain.ErrDecodeFailure,
		},
		{
			name: "undecodable result",
			execute: func(_ context.Context, calls []batch.Call) ([]batch.CallResult, error) {
				results := answer(calls)
				for i := range results {
					if results[i].ID == idA {
						results[i].Data = []byte("bad")
					}
				}
				return results, nil
			},
			wantErr: domain.ErrDecodeFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			batcher := mocks.NewMockBatcher(ctrl)
			batcher.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(tt.execute).AnyTimes()

			_, err := batch.NewAggregator(batcher, stubCodec{}, 50).Remaining(context.Background(), testPools())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAggregator_Remaining_EncodeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	codec := mocks.NewMockCodec(ctrl)
	codec.EXPECT().EncodeRemaining(domain.StandardERC721, collectionX).Return(nil, fmt.Errorf("unsupported"))

	_, err := batch.NewAggregator(mocks.NewMockBatcher(ctrl), codec, 50).Remaining(context.Background(), testPools())
	assert.Error(t, err)
}
