// Package indexer runs the register and update flows over the pool store, the chain and the report sink.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
	"github.com/feral-file/prize-indexer/internal/merge"
	"github.com/feral-file/prize-indexer/internal/providers/catalog"
	"github.com/feral-file/prize-indexer/internal/providers/ethereum"
	"github.com/feral-file/prize-indexer/internal/providers/explorer"
	"github.com/feral-file/prize-indexer/internal/reconcile"
	"github.com/feral-file/prize-indexer/internal/report"
	"github.com/feral-file/prize-indexer/internal/store"
)

// MetadataLoader loads the metadata of every item of the given pools
//
//go:generate mockgen -source=indexer.go -destination=../mocks/indexer.go -package=mocks
type MetadataLoader interface {
	Load(ctx context.Context, pools []domain.PoolConfig) (domain.MetadataDocuments, error)
}

// RemainingQuerier queries the ids each pool still holds
type RemainingQuerier interface {
	Remaining(ctx context.Context, pools []domain.PoolConfig) (domain.RemainingByPool, error)
}

// Indexer runs the register and update flows
type Indexer struct {
	pools     store.PoolStore
	catalog   catalog.Client
	explorer  explorer.Client
	logs      ethereum.LogSource
	schema    *ethereum.Schema
	loader    MetadataLoader
	remaining RemainingQuerier
	sink      report.Sink
	clock     adapter.Clock
}

// New creates an indexer
func New(
	pools store.PoolStore,
	catalog catalog.Client,
	explorer explorer.Client,
	logs ethereum.LogSource,
	schema *ethereum.Schema,
	loader MetadataLoader,
	remaining RemainingQuerier,
	sink report.Sink,
	clock adapter.Clock,
) *Indexer {
	return &Indexer{
		pools:     pools,
		catalog:   catalog,
		explorer:  explorer,
		logs:      logs,
		schema:    schema,
		loader:    loader,
		remaining: remaining,
		sink:      sink,
		clock:     clock,
	}
}

// runContext tags every log line of one run with a fresh run id
func (i *Indexer) runContext(ctx context.Context, command string, start time.Time) (context.Context, string) {
	runID := ulid.MustNewDefault(start).String()
	return logger.WithFields(ctx, zap.String("run_id", runID), zap.String("command", command)), runID
}

// Register scans the deposit history of a catalogued pool and appends its configuration to the store.
// Nothing is written unless the whole scan succeeds.
func (i *Indexer) Register(ctx context.Context, poolID string) (*domain.PoolConfig, error) {
	start := i.clock.Now()
	ctx, _ = i.runContext(ctx, "add", start)
	ctx = logger.WithFields(ctx, zap.String("pool_id", poolID))

	pools, err := i.pools.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}
	if _, ok := domain.FindPool(pools, poolID); ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicatePool, poolID)
	}

	entry, err := i.catalog.NFTPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "Found pool in catalogue",
		zap.String("name", entry.Name),
		zap.String("strategy", entry.PrizeStrategyAddress.Hex()))

	origin, err := i.explorer.DeployedBlock(ctx, entry.PrizeStrategyAddress, i.schema.OwnershipTransferredTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to find strategy origin block: %w", err)
	}
	logger.InfoCtx(ctx, "Found strategy origin block", zap.Uint64("block", origin))

	streams := make([][]domain.DepositRecord, 0, len(domain.AssetStandards))
	for _, standard := range domain.AssetStandards {
		records, err := i.deposits(ctx, entry, standard, origin)
		if err != nil {
			return nil, err
		}
		streams = append(streams, records)
	}

	pool := domain.PoolConfig{
		ID:                      poolID,
		Name:                    entry.Name,
		StrategyContractAddress: entry.PrizeStrategyAddress,
		OriginBlockNumber:       origin,
		InitialInventory:        merge.Inventory(streams...),
	}

	if err := i.pools.Append(ctx, pool); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Registered pool",
		zap.Int("collections", len(pool.InitialInventory)),
		zap.Duration("elapsed", i.clock.Since(start)))
	return &pool, nil
}

// deposits reads and decodes one standard's deposit stream
func (i *Indexer) deposits(ctx context.Context, entry *catalog.Pool, standard domain.AssetStandard, origin uint64) ([]domain.DepositRecord, error) {
	topic, err := i.schema.DepositTopic(standard)
	if err != nil {
		return nil, err
	}

	logs, err := i.logs.QueryLogs(ctx, entry.PrizeStrategyAddress, topic, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s deposits: %w", standard, err)
	}

	records := make([]domain.DepositRecord, 0, len(logs))
	for _, l := range logs {
		record, err := i.schema.DecodeDeposit(standard, l)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s deposit in tx %s: %w", standard, l.TxHash.Hex(), err)
		}
		records = append(records, record)
	}

	logger.InfoCtx(ctx, "Scanned deposits", zap.Stringer("standard", standard), zap.Int("events", len(records)))
	return records, nil
}

// Update renders a fresh report for every stored pool, or only poolID when it is set,
// and returns the report path.
func (i *Indexer) Update(ctx context.Context, poolID string) (string, error) {
	start := i.clock.Now()
	ctx, runID := i.runContext(ctx, "update", start)

	pools, err := i.pools.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load pools: %w", err)
	}
	if len(pools) == 0 {
		return "", domain.ErrNoPools
	}

	if poolID != "" {
		pool, ok := domain.FindPool(pools, poolID)
		if !ok {
			return "", fmt.Errorf("%w: %s", domain.ErrConfigNotFound, poolID)
		}
		pools = []domain.PoolConfig{pool}
		ctx = logger.WithFields(ctx, zap.String("pool_id", poolID))
	}

	docs, err := i.loader.Load(ctx, pools)
	if err != nil {
		return "", err
	}

	remaining, err := i.remaining.Remaining(ctx, pools)
	if err != nil {
		return "", fmt.Errorf("failed to query remaining ids: %w", err)
	}

	poolReports, err := reconcile.Pools(ctx, pools, docs, remaining)
	if err != nil {
		return "", err
	}

	path, err := i.sink.Write(ctx, &domain.Report{
		GeneratedAt: start,
		RunID:       runID,
		Pools:       poolReports,
	})
	if err != nil {
		return "", err
	}

	logger.InfoCtx(ctx, "Updated report", zap.String("path", path), zap.Duration("elapsed", i.clock.Since(start)))
	return path, nil
}
