package metadata

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/cache"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/fetcher"
	"github.com/feral-file/prize-indexer/internal/logger"
)

// Loader loads the metadata of every inventory item, fetching only cache misses
type Loader struct {
	resolver Resolver
	cache    cache.Cache
	fetcher  *fetcher.Fetcher[*domain.MetadataDocument]
}

// NewLoader creates a loader running at most concurrency fetches at a time
func NewLoader(resolver Resolver, cache cache.Cache, concurrency int) (*Loader, error) {
	f, err := fetcher.New[*domain.MetadataDocument](concurrency)
	if err != nil {
		return nil, err
	}

	return &Loader{
		resolver: resolver,
		cache:    cache,
		fetcher:  f,
	}, nil
}

type item struct {
	collection common.Address
	standard   domain.AssetStandard
	id         *big.Int
}

// Load returns a document for every item of the pools' initial inventories.
// Any fetch failure aborts the load; cache write failures are only logged.
func (l *Loader) Load(ctx context.Context, pools []domain.PoolConfig) (domain.MetadataDocuments, error) {
	items := collectItems(pools)

	tasks := make([]fetcher.Task[*domain.MetadataDocument], len(items))
	for i, it := range items {
		tasks[i] = l.task(it)
	}

	logger.InfoCtx(ctx, "Loading metadata",
		zap.Int("items", len(items)),
		zap.Int("concurrency", l.fetcher.Concurrency()))

	results := l.fetcher.Run(ctx, tasks)
	if i, err := fetcher.FirstError(results); err != nil {
		key := domain.NewItemKey(items[i].collection, items[i].id)
		return nil, fmt.Errorf("failed to load metadata for %s: %w", key, err)
	}

	docs := make(domain.MetadataDocuments, len(items))
	fetched := 0
	for _, r := range results {
		docs[r.Value.Key()] = r.Value
		if !r.Cached {
			fetched++
		}
	}

	logger.InfoCtx(ctx, "Loaded metadata",
		zap.Int("items", len(items)),
		zap.Int("fetched", fetched),
		zap.Int("cached", len(items)-fetched))

	return docs, nil
}

func (l *Loader) task(it item) fetcher.Task[*domain.MetadataDocument] {
	key := domain.NewItemKey(it.collection, it.id)

	return fetcher.Task[*domain.MetadataDocument]{
		Cached: func(ctx context.Context) (*domain.MetadataDocument, bool, error) {
			doc, err := l.cache.Get(ctx, key)
			if err != nil {
				return nil, false, fmt.Errorf("failed to read cache: %w", err)
			}
			return doc, doc != nil, nil
		},
		Fetch: func(ctx context.Context) (*domain.MetadataDocument, error) {
			doc, err := l.resolver.Resolve(ctx, it.collection, it.standard, it.id)
			if err != nil {
				return nil, err
			}

			if err := l.cache.Put(ctx, doc); err != nil {
				if !errors.Is(err, domain.ErrCacheWriteFailure) {
					return nil, err
				}
				logger.WarnCtx(ctx, "Failed to cache metadata", zap.String("key", key.String()), zap.Error(err))
			}

			return doc, nil
		},
	}
}

// collectItems lists inventory items in pool order, each key at most once
func collectItems(pools []domain.PoolConfig) []item {
	seen := make(map[domain.ItemKey]struct{})
	var items []item

	for _, pool := range pools {
		for _, entry := range pool.InitialInventory {
			for _, id := range entry.ItemIDs {
				key := domain.NewItemKey(entry.CollectionAddress, id)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				items = append(items, item{collection: entry.CollectionAddress, standard: entry.Standard, id: id})
			}
		}
	}

	return items
}
