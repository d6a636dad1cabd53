package ethereum

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/prize-indexer/internal/batch"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/mocks"
)

var multicallAddress = common.HexToAddress("0xB94858b0bB5437498F5453A16039337e5Fdc269C")

func testCalls() []batch.Call {
	return []batch.Call{
		{ID: "pool-a/" + collectionAddress.Hex(), Target: strategyAddress, Data: []byte{0x01}},
		{ID: "pool-b/" + collectionAddress.Hex(), Target: strategyAddress, Data: []byte{0x02}},
	}
}

func TestMulticallBatcher_Execute(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(multicallABI))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	ethClient := mocks.NewMockEthClient(ctrl)
	batcher, err := NewMulticallBatcher(ethClient, multicallAddress)
	require.NoError(t, err)

	output, err := parsed.Methods["aggregate"].Outputs.Pack(big.NewInt(100), [][]byte{{0xaa}, {0xbb}})
	require.NoError(t, err)

	ethClient.EXPECT().CallContract(gomock.Any(), gomock.Any(), nil).
		DoAndReturn(func(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			assert.Equal(t, multicallAddress, *msg.To)
			assert.Equal(t, parsed.Methods["aggregate"].ID, msg.Data[:4])
			return output, nil
		})

	results, err := batcher.Execute(context.Background(), testCalls())
	require.NoError(t, err)
	assert.Equal(t, []batch.CallResult{
		{ID: "pool-a/" + collectionAddress.Hex(), Data: []byte{0xaa}},
		{ID: "pool-b/" + collectionAddress.Hex(), Data: []byte{0xbb}},
	}, results)
}

func TestMulticallBatcher_Errors(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(multicallABI))
	require.NoError(t, err)

	short, err := parsed.Methods["aggregate"].Outputs.Pack(big.NewInt(100), [][]byte{{0xaa}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		output  []byte
		callErr error
		wantErr error
	}{
		{name: "call fails", callErr: errors.New("execution reverted"), wantErr: domain.ErrUpstreamUnavailable},
		{name: "garbage output", output: []byte{0x01}, wantErr: domain.ErrDecodeFailure},
		{name: "result count mismatch", output: short, wantErr: domain.ErrDecodeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ethClient := mocks.NewMockEthClient(ctrl)
			batcher, err := NewMulticallBatcher(ethClient, multicallAddress)
			require.NoError(t, err)

			ethClient.EXPECT().CallContract(gomock.Any(), gomock.Any(), nil).Return(tt.output, tt.callErr)

			_, err = batcher.Execute(context.Background(), testCalls())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMulticallBatcher_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	batcher, err := NewMulticallBatcher(mocks.NewMockEthClient(ctrl), multicallAddress)
	require.NoError(t, err)

	results, err := batcher.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRPCBatcher_Execute(t *testing.T) {
	ctrl := gomock.NewController(t)
	ethClient := mocks.NewMockEthClient(ctrl)
	batcher := NewRPCBatcher(ethClient)

	ethClient.EXPECT().BatchCallContext(gomock.Any(), gomock.Len(2)).
		DoAndReturn(func(_ context.Context, elems []rpc.BatchElem) error {
			for i, elem := range elems {
				assert.Equal(t, "eth_call", elem.Method)
				require.Len(t, elem.Args, 2)
				assert.Equal(t, "latest", elem.Args[1])
				args, ok := elem.Args[0].(callArgs)
				require.True(t, ok)
				assert.Equal(t, strategyAddress, args.To)

				*elem.Result.(*hexutil.Bytes) = hexutil.Bytes{byte(0xa0 + i)}
			}
			return nil
		})

	results, err := batcher.Execute(context.Background(), testCalls())
	require.NoError(t, err)
	assert.Equal(t, []batch.CallResult{
		{ID: "pool-a/" + collectionAddress.Hex(), Data: []byte{0xa0}},
		{ID: "pool-b/" + collectionAddress.Hex(), Data: []byte{0xa1}},
	}, results)
}

func TestRPCBatcher_Errors(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ethClient := mocks.NewMockEthClient(ctrl)
		ethClient.EXPECT().BatchCallContext(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

		_, err := NewRPCBatcher(ethClient).Execute(context.Background(), testCalls())
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})

	t.Run("element error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ethClient := mocks.NewMockEthClient(ctrl)
		ethClient.EXPECT().BatchCallContext(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, elems []rpc.BatchElem) error {
				elems[1].Error = errors.New("execution reverted")
				return nil
			})

		_, err := NewRPCBatcher(ethClient).Execute(context.Background(), testCalls())
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})
}
