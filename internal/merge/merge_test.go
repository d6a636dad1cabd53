package merge_test

import (
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/merge"
)

var (
	armour = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	shield = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func record(t *testing.T, collection common.Address, standard domain.AssetStandard, ids ...string) domain.DepositRecord {
	t.Helper()
	parsed, err := domain.ParseItemIDs(ids)
	require.NoError(t, err)
	return domain.DepositRecord{CollectionAddress: collection, Standard: standard, ItemIDs: parsed}
}

func render(entries []domain.InventoryEntry) string {
	return fmt.Sprint(entries)
}

func TestInventory(t *testing.T) {
	erc721 := []domain.DepositRecord{
		record(t, armour, domain.StandardERC721, "3", "1"),
		record(t, armour, domain.StandardERC721, "2", "3"),
	}
	erc1155 := []domain.DepositRecord{
		record(t, shield, domain.StandardERC1155, "7"),
	}

	entries := merge.Inventory(erc721, erc1155)
	require.Len(t, entries, 2)

	assert.Equal(t, armour, entries[0].CollectionAddress)
	assert.Equal(t, domain.StandardERC721, entries[0].Standard)
	assert.Equal(t, "[1 2 3]", fmt.Sprint(entries[0].ItemIDs))

	assert.Equal(t, shield, entries[1].CollectionAddress)
	assert.Equal(t, domain.StandardERC1155, entries[1].Standard)
	assert.Equal(t, "[7]", fmt.Sprint(entries[1].ItemIDs))
}

func TestInventory_NumericSort(t *testing.T) {
	entries := merge.Inventory([]domain.DepositRecord{record(t, armour, domain.StandardERC721, "10", "2", "1")})
	require.Len(t, entries, 1)
	assert.Equal(t, "[1 2 10]", fmt.Sprint(entries[0].ItemIDs))
}

func TestInventory_LargeIDs(t *testing.T) {
	big1 := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	big2 := "18446744073709551616"
	entries := merge.Inventory([]domain.DepositRecord{record(t, armour, domain.StandardERC1155, big1, "5", big2)})
	require.Len(t, entries, 1)
	assert.Equal(t, fmt.Sprintf("[5 %s %s]", big2, big1), fmt.Sprint(entries[0].ItemIDs))
}

func TestInventory_Empty(t *testing.T) {
	assert.Empty(t, merge.Inventory())
	assert.Empty(t, merge.Inventory(nil, nil))
}

func TestInventory_RecordWithoutIDsStartsEntry(t *testing.T) {
	entries := merge.Inventory([]domain.DepositRecord{{CollectionAddress: shield, Standard: domain.StandardERC1155}})
	require.Len(t, entries, 1)
	assert.Equal(t, shield, entries[0].CollectionAddress)
	assert.Empty(t, entries[0].ItemIDs)
}

func TestInventory_Commutative(t *testing.T) {
	records := []domain.DepositRecord{
		record(t, armour, domain.StandardERC721, "1", "2"),
		record(t, shield, domain.StandardERC1155, "9", "10"),
		record(t, armour, domain.StandardERC721, "2", "30"),
		record(t, shield, domain.StandardERC1155, "100"),
		record(t, armour, domain.StandardERC721, "4"),
	}
	expected := render(merge.Inventory(records))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]domain.DepositRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		split := rng.Intn(len(shuffled) + 1)
		assert.Equal(t, expected, render(merge.Inventory(shuffled[:split], shuffled[split:])))
	}
}

func TestInventory_Idempotent(t *testing.T) {
	r := record(t, armour, domain.StandardERC721, "5", "1", "5")

	once := merge.Inventory([]domain.DepositRecord{r})
	twice := merge.Inventory([]domain.DepositRecord{r, r})

	assert.Equal(t, render(once), render(twice))
	assert.Equal(t, "[1 5]", fmt.Sprint(once[0].ItemIDs))
}

func TestInventory_DoesNotAliasInput(t *testing.T) {
	r := record(t, armour, domain.StandardERC721, "5")
	entries := merge.Inventory([]domain.DepositRecord{r})

	r.ItemIDs[0].SetInt64(99)
	assert.Equal(t, 0, entries[0].ItemIDs[0].Cmp(big.NewInt(5)))
}
