package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
)

// DEFAULT_LOG_STEP_SIZE is the initial block range of one eth_getLogs request
const DEFAULT_LOG_STEP_SIZE = uint64(5000)

// LogSource returns the logs of one contract and topic from a block to the chain head
//
//go:generate mockgen -source=client.go -destination=../../mocks/ethereum_client.go -package=mocks -mock_names=LogSource=MockLogSource,Client=MockEthereumClient
type LogSource interface {
	QueryLogs(ctx context.Context, contract common.Address, topic common.Hash, fromBlock uint64) ([]types.Log, error)
}

// Client is the chain read surface used by the indexer
type Client interface {
	LogSource

	// TokenURI returns the metadata URI of an item, via tokenURI or uri depending on the standard
	TokenURI(ctx context.Context, collection common.Address, standard domain.AssetStandard, id *big.Int) (string, error)

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	client   adapter.EthClient
	schema   *Schema
	stepSize uint64
}

// NewClient creates a chain client. A zero stepSize uses DEFAULT_LOG_STEP_SIZE.
func NewClient(client adapter.EthClient, schema *Schema, stepSize uint64) Client {
	if stepSize == 0 {
		stepSize = DEFAULT_LOG_STEP_SIZE
	}
	return &ethereumClient{client: client, schema: schema, stepSize: stepSize}
}

// QueryLogs pages through [fromBlock, head] with eth_getLogs, halving the range
// whenever the node rejects a request for returning too many results
func (c *ethereumClient) QueryLogs(ctx context.Context, contract common.Address, topic common.Hash, fromBlock uint64) ([]types.Log, error) {
	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest block: %v", domain.ErrUpstreamUnavailable, err)
	}
	toBlock := head.Number.Uint64()

	var allLogs []types.Log
	stepSize := c.stepSize
	currentFrom := fromBlock

	for currentFrom <= toBlock {
		currentTo := currentFrom + stepSize - 1
		if currentTo > toBlock || currentTo < currentFrom {
			currentTo = toBlock
		}

		logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(currentFrom),
			ToBlock:   new(big.Int).SetUint64(currentTo),
			Addresses: []common.Address{contract},
			Topics:    [][]common.Hash{{topic}},
		})
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom = currentTo + 1
			continue
		}

		if !isTooManyResultsError(err) || stepSize == 1 {
			return nil, fmt.Errorf("%w: failed to get logs for range %d-%d: %v",
				domain.ErrUpstreamUnavailable, currentFrom, currentTo, err)
		}

		logger.WarnCtx(ctx, "Too many results, reducing step size",
			zap.Uint64("oldStepSize", stepSize),
			zap.Uint64("newStepSize", stepSize/2),
			zap.Uint64("fromBlock", currentFrom),
			zap.Uint64("toBlock", currentTo))
		stepSize /= 2
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is a node-side range or result limit
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "query returned more than") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum") ||
		strings.Contains(errStr, "block range is too wide") ||
		strings.Contains(errStr, "limit exceeded")
}

// TokenURI fetches the metadata URI of an item
func (c *ethereumClient) TokenURI(ctx context.Context, collection common.Address, standard domain.AssetStandard, id *big.Int) (string, error) {
	entry, err := c.schema.For(standard)
	if err != nil {
		return "", err
	}

	data, err := entry.CollectionABI.Pack(entry.URIMethod, id)
	if err != nil {
		return "", fmt.Errorf("failed to pack %s: %w", entry.URIMethod, err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &collection,
		Data: data,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to call %s on %s: %v", domain.ErrUpstreamUnavailable, entry.URIMethod, collection.Hex(), err)
	}

	var uri string
	if err := entry.CollectionABI.UnpackIntoInterface(&uri, entry.URIMethod, result); err != nil {
		return "", fmt.Errorf("%w: %s result: %v", domain.ErrDecodeFailure, entry.URIMethod, err)
	}

	return uri, nil
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
