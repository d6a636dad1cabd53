// Package batch groups the per-(pool, collection) remaining-ids calls into batched round trips
// and maps the answers back to their pool and collection.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
)

// DEFAULT_BATCH_SIZE is the number of calls per round trip when none is configured
const DEFAULT_BATCH_SIZE = 50

// Call is one read-only contract call tagged with a correlation id
type Call struct {
	ID     string
	Target common.Address
	Data   []byte
}

// CallResult is the return data of the call with the same ID
type CallResult struct {
	ID   string
	Data []byte
}

// Batcher executes a group of calls in one round trip.
// Results may come back in any order; they are matched to calls by ID.
//
//go:generate mockgen -source=batch.go -destination=../mocks/batch.go -package=mocks -mock_names=Batcher=MockBatcher,Codec=MockCodec
type Batcher interface {
	Execute(ctx context.Context, calls []Call) ([]CallResult, error)
}

// Codec encodes the remaining-ids call and decodes its result
type Codec interface {
	EncodeRemaining(standard domain.AssetStandard, collection common.Address) ([]byte, error)
	DecodeRemaining(standard domain.AssetStandard, data []byte) ([]*big.Int, error)
}

// target is what a correlation id resolves to
type target struct {
	poolID     string
	collection common.Address
	standard   domain.AssetStandard
}

// Aggregator queries the remaining ids of every (pool, collection) pair
type Aggregator struct {
	batcher   Batcher
	codec     Codec
	batchSize int
}

// NewAggregator creates an aggregator. A non-positive batchSize uses DEFAULT_BATCH_SIZE.
func NewAggregator(batcher Batcher, codec Codec, batchSize int) *Aggregator {
	if batchSize <= 0 {
		batchSize = DEFAULT_BATCH_SIZE
	}
	return &Aggregator{batcher: batcher, codec: codec, batchSize: batchSize}
}

// CorrelationID returns the id tagging the remaining-ids call of a pool and collection
func CorrelationID(poolID string, collection common.Address) string {
	return poolID + "/" + collection.Hex()
}

// Remaining returns pool id → collection → sorted ids still held by the pool's strategy.
// Every pool and every collection of its inventory is present in the result.
func (a *Aggregator) Remaining(ctx context.Context, pools []domain.PoolConfig) (domain.RemainingByPool, error) {
	calls, targets, err := a.plan(pools)
	if err != nil {
		return nil, err
	}

	remaining := make(domain.RemainingByPool, len(pools))
	for _, pool := range pools {
		if _, ok := remaining[pool.ID]; !ok {
			remaining[pool.ID] = make(map[common.Address][]*big.Int, len(pool.InitialInventory))
		}
	}

	for start := 0; start < len(calls); start += a.batchSize {
		end := min(start+a.batchSize, len(calls))
		chunk := calls[start:end]

		results, err := a.executeWithRetry(ctx, chunk)
		if err != nil {
			return nil, err
		}

		if err := a.demultiplex(chunk, results, targets, remaining); err != nil {
			return nil, err
		}
	}

	return remaining, nil
}

// plan builds one call per distinct (pool, collection) pair
func (a *Aggregator) plan(pools []domain.PoolConfig) ([]Call, map[string]target, error) {
	var calls []Call
	targets := make(map[string]target)

	for _, pool := range pools {
		for _, entry := range pool.InitialInventory {
			id := CorrelationID(pool.ID, entry.CollectionAddress)
			if _, seen := targets[id]; seen {
				continue
			}

			data, err := a.codec.EncodeRemaining(entry.Standard, entry.CollectionAddress)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to encode remaining call %s: %w", id, err)
			}

			targets[id] = target{poolID: pool.ID, collection: entry.CollectionAddress, standard: entry.Standard}
			calls = append(calls, Call{ID: id, Target: pool.StrategyContractAddress, Data: data})
		}
	}

	return calls, targets, nil
}

// executeWithRetry runs a chunk; on failure the chunk is retried once split in halves
func (a *Aggregator) executeWithRetry(ctx context.Context, chunk []Call) ([]CallResult, error) {
	results, err := a.batcher.Execute(ctx, chunk)
	if err == nil {
		return results, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	size := max(1, len(chunk)/2)
	logger.WarnCtx(ctx, "Batch call failed, retrying with a smaller batch size",
		zap.Int("batch_size", len(chunk)),
		zap.Int("retry_batch_size", size),
		zap.Error(err))

	retried := make([]CallResult, 0, len(chunk))
	for start := 0; start < len(chunk); start += size {
		end := min(start+size, len(chunk))
		part, err := a.batcher.Execute(ctx, chunk[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch of %d calls failed after retry: %v", domain.ErrUpstreamUnavailable, end-start, err)
		}
		retried = append(retried, part...)
	}

	return retried, nil
}

// demultiplex decodes the results of one chunk into remaining, matching by correlation id
func (a *Aggregator) demultiplex(chunk []Call, results []CallResult, targets map[string]target, remaining domain.RemainingByPool) error {
	expected := make(map[string]bool, len(chunk))
	for _, call := range chunk {
		expected[call.ID] = true
	}

	for _, result := range results {
		answered, ok := expected[result.ID]
		if !ok {
			return fmt.Errorf("%w: unexpected batch result id %q", domain.ErrDecodeFailure, result.ID)
		}
		if !answered {
			return fmt.Errorf("%w: duplicate batch result id %q", domain.ErrDecodeFailure, result.ID)
		}
		expected[result.ID] = false

		t := targets[result.ID]
		ids, err := a.codec.DecodeRemaining(t.standard, result.Data)
		if err != nil {
			return fmt.Errorf("failed to decode remaining ids of %s: %w", result.ID, err)
		}
		domain.SortItemIDs(ids)
		remaining[t.poolID][t.collection] = ids
	}

	for id, missing := range expected {
		if missing {
			return fmt.Errorf("%w: no batch result for %q", domain.ErrDecodeFailure, id)
		}
	}

	return nil
}
