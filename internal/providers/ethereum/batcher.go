package ethereum

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/batch"
	"github.com/feral-file/prize-indexer/internal/domain"
)

// multicallABI is the aggregate entry point of the Multicall contract
const multicallABI = `[{"inputs":[{"components":[{"name":"target","type":"address"},{"name":"callData","type":"bytes"}],"name":"calls","type":"tuple[]"}],"name":"aggregate","outputs":[{"name":"blockNumber","type":"uint256"},{"name":"returnData","type":"bytes[]"}],"stateMutability":"nonpayable","type":"function"}]`

// multicallCall mirrors the (address,bytes) tuple of aggregate
type multicallCall struct {
	Target   common.Address
	CallData []byte
}

// multicallBatcher sends a batch as one eth_call to a Multicall contract
type multicallBatcher struct {
	client    adapter.EthClient
	multicall common.Address
	abi       abi.ABI
}

// NewMulticallBatcher creates a batcher using the Multicall contract at address
func NewMulticallBatcher(client adapter.EthClient, address common.Address) (batch.Batcher, error) {
	parsed, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse multicall ABI: %w", err)
	}
	return &multicallBatcher{client: client, multicall: address, abi: parsed}, nil
}

// Execute packs all calls into aggregate. Multicall answers positionally, so results are
// tagged with the call IDs here and the aggregator never relies on order.
func (b *multicallBatcher) Execute(ctx context.Context, calls []batch.Call) ([]batch.CallResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	packed := make([]multicallCall, len(calls))
	for i, call := range calls {
		packed[i] = multicallCall{Target: call.Target, CallData: call.Data}
	}

	data, err := b.abi.Pack("aggregate", packed)
	if err != nil {
		return nil, fmt.Errorf("failed to pack aggregate: %w", err)
	}

	output, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &b.multicall, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: multicall aggregate: %v", domain.ErrUpstreamUnavailable, err)
	}

	values, err := b.abi.Unpack("aggregate", output)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate result: %v", domain.ErrDecodeFailure, err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("%w: aggregate returned %d values", domain.ErrDecodeFailure, len(values))
	}
	returnData, ok := values[1].([][]byte)
	if !ok {
		return nil, fmt.Errorf("%w: aggregate return data has type %T", domain.ErrDecodeFailure, values[1])
	}
	if len(returnData) != len(calls) {
		return nil, fmt.Errorf("%w: aggregate returned %d results for %d calls", domain.ErrDecodeFailure, len(returnData), len(calls))
	}

	results := make([]batch.CallResult, len(calls))
	for i, call := range calls {
		results[i] = batch.CallResult{ID: call.ID, Data: returnData[i]}
	}
	return results, nil
}

// rpcBatcher sends a batch as one JSON-RPC batch of eth_call requests
type rpcBatcher struct {
	client adapter.EthClient
}

// NewRPCBatcher creates a batcher using JSON-RPC batching
func NewRPCBatcher(client adapter.EthClient) batch.Batcher {
	return &rpcBatcher{client: client}
}

// callArgs is the eth_call transaction object
type callArgs struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// Execute sends every call as its own batch element; each element owns its result slot
func (b *rpcBatcher) Execute(ctx context.Context, calls []batch.Call) ([]batch.CallResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	elems := make([]rpc.BatchElem, len(calls))
	outputs := make([]hexutil.Bytes, len(calls))
	for i, call := range calls {
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []interface{}{callArgs{To: call.Target, Data: call.Data}, "latest"},
			Result: &outputs[i],
		}
	}

	if err := b.client.BatchCallContext(ctx, elems); err != nil {
		return nil, fmt.Errorf("%w: rpc batch: %v", domain.ErrUpstreamUnavailable, err)
	}

	results := make([]batch.CallResult, len(calls))
	for i, call := range calls {
		if elems[i].Error != nil {
			return nil, fmt.Errorf("%w: eth_call %s: %v", domain.ErrUpstreamUnavailable, call.ID, elems[i].Error)
		}
		results[i] = batch.CallResult{ID: call.ID, Data: outputs[i]}
	}
	return results, nil
}
