// Package reconcile marks inventory items as awarded or unclaimed against the ids a strategy still holds.
package reconcile

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
)

// Pools joins the initial inventories, the item metadata and the live remaining ids
// into one report entry per pool, in pool order.
func Pools(
	ctx context.Context,
	pools []domain.PoolConfig,
	docs domain.MetadataDocuments,
	remaining domain.RemainingByPool,
) ([]domain.PoolReport, error) {
	reports := make([]domain.PoolReport, 0, len(pools))

	for _, pool := range pools {
		held, ok := remaining[pool.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no remaining ids for pool %s", domain.ErrDecodeFailure, pool.ID)
		}

		report := domain.PoolReport{
			ID:          pool.ID,
			Name:        pool.Name,
			Collections: make([]domain.CollectionReport, 0, len(pool.InitialInventory)),
		}

		for _, entry := range pool.InitialInventory {
			ids, ok := held[entry.CollectionAddress]
			if !ok {
				return nil, fmt.Errorf("%w: no remaining ids for pool %s collection %s",
					domain.ErrDecodeFailure, pool.ID, entry.CollectionAddress.Hex())
			}

			collection, err := Collection(ctx, pool.ID, entry, docs, ids)
			if err != nil {
				return nil, err
			}
			report.Collections = append(report.Collections, collection)
		}

		reports = append(reports, report)
	}

	return reports, nil
}

// Collection marks every inventory item as awarded or unclaimed and tallies both
// the initial and the remaining items by display name.
// Remaining ids that were never deposited are dropped with a warning.
func Collection(
	ctx context.Context,
	poolID string,
	entry domain.InventoryEntry,
	docs domain.MetadataDocuments,
	remaining []*big.Int,
) (domain.CollectionReport, error) {
	held := make(map[string]struct{}, len(remaining))
	for _, id := range remaining {
		if !entry.Contains(id) {
			logger.WarnCtx(ctx, "Ignoring remaining id outside the initial inventory",
				zap.String("pool", poolID),
				zap.String("collection", entry.CollectionAddress.Hex()),
				zap.String("id", id.String()))
			continue
		}
		held[id.String()] = struct{}{}
	}

	report := domain.CollectionReport{
		Address:         entry.CollectionAddress,
		Standard:        entry.Standard,
		Items:           make([]domain.ItemStatus, 0, len(entry.ItemIDs)),
		InitialCounts:   make(map[string]int),
		RemainingCounts: make(map[string]int),
	}

	for _, id := range entry.ItemIDs {
		doc, err := lookup(docs, entry.CollectionAddress, id)
		if err != nil {
			return domain.CollectionReport{}, fmt.Errorf("pool %s: %w", poolID, err)
		}

		_, unclaimed := held[id.String()]
		report.Items = append(report.Items, domain.ItemStatus{
			ID:       id,
			Awarded:  !unclaimed,
			Metadata: doc,
		})

		report.InitialCounts[doc.Name]++
		if unclaimed {
			report.RemainingCounts[doc.Name]++
			report.Remaining++
		} else {
			report.Awarded++
		}
	}

	return report, nil
}

func lookup(docs domain.MetadataDocuments, collection common.Address, id *big.Int) (*domain.MetadataDocument, error) {
	key := domain.NewItemKey(collection, id)
	doc, ok := docs[key]
	if !ok || doc == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingMetadata, key)
	}
	return doc, nil
}
