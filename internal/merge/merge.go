// Package merge folds deposit records into a canonical per-collection inventory.
package merge

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/prize-indexer/internal/domain"
)

// collectionSet accumulates the distinct ids of one collection
type collectionSet struct {
	standard domain.AssetStandard
	ids      map[string]*big.Int
}

// Inventory folds deposit records into one entry per collection address.
// Ids are unioned and sorted numerically; the result is ordered by address so that
// any permutation of the input yields the same output.
func Inventory(streams ...[]domain.DepositRecord) []domain.InventoryEntry {
	sets := make(map[common.Address]*collectionSet)

	for _, records := range streams {
		for _, record := range records {
			set, ok := sets[record.CollectionAddress]
			if !ok {
				set = &collectionSet{
					standard: record.Standard,
					ids:      make(map[string]*big.Int, len(record.ItemIDs)),
				}
				sets[record.CollectionAddress] = set
			}
			// a collection implements one standard; pick the lowest on conflict so order never matters
			if record.Standard < set.standard {
				set.standard = record.Standard
			}

			for _, id := range record.ItemIDs {
				set.ids[id.String()] = id
			}
		}
	}

	entries := make([]domain.InventoryEntry, 0, len(sets))
	for address, set := range sets {
		ids := make([]*big.Int, 0, len(set.ids))
		for _, id := range set.ids {
			ids = append(ids, new(big.Int).Set(id))
		}
		domain.SortItemIDs(ids)

		entries = append(entries, domain.InventoryEntry{
			CollectionAddress: address,
			Standard:          set.standard,
			ItemIDs:           ids,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].CollectionAddress.Bytes(), entries[j].CollectionAddress.Bytes()) < 0
	})

	return entries
}
