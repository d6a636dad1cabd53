package store_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/mocks"
	"github.com/feral-file/prize-indexer/internal/store"
)

func testPool(id string) domain.PoolConfig {
	large, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	return domain.PoolConfig{
		ID:                      id,
		Name:                    "Pool " + id,
		StrategyContractAddress: common.HexToAddress("0x00000000000000000000000000000000000000c3"),
		OriginBlockNumber:       12345678,
		InitialInventory: []domain.InventoryEntry{
			{
				CollectionAddress: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
				Standard:          domain.StandardERC721,
				ItemIDs:           []*big.Int{big.NewInt(1), big.NewInt(2)},
			},
			{
				CollectionAddress: common.HexToAddress("0x00000000000000000000000000000000000000b2"),
				Standard:          domain.StandardERC1155,
				ItemIDs:           []*big.Int{large},
			},
		},
	}
}

func TestFilePoolStore_LoadMissing(t *testing.T) {
	s := store.NewFilePoolStore(filepath.Join(t.TempDir(), "pools.json"), adapter.NewFileSystem(), adapter.NewJSON())

	pools, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, pools)
	assert.Empty(t, pools)
}

func TestFilePoolStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "pools.json")
	s := store.NewFilePoolStore(path, adapter.NewFileSystem(), adapter.NewJSON())

	require.NoError(t, s.Append(ctx, testPool("moo_a")))
	require.NoError(t, s.Append(ctx, testPool("moo_b")))

	pools, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "moo_a", pools[0].ID)
	assert.Equal(t, "moo_b", pools[1].ID)
	want := testPool("moo_a")
	assert.Equal(t, want.StrategyContractAddress, pools[0].StrategyContractAddress)
	assert.Equal(t, want.OriginBlockNumber, pools[0].OriginBlockNumber)
	require.Len(t, pools[0].InitialInventory, 2)
	assert.Equal(t, domain.StandardERC1155, pools[0].InitialInventory[1].Standard)
	assert.Equal(t, want.InitialInventory[1].ItemIDs[0].String(), pools[0].InitialInventory[1].ItemIDs[0].String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"prizeStrategyAddress"`)
	assert.Contains(t, string(data), `"startBlock": 12345678`)
	assert.Contains(t, string(data), `"type": "erc1155"`)
	assert.Contains(t, string(data), "115792089237316195423570985008687907853269984665640564039457584007913129639935")
}

func TestFilePoolStore_AppendDuplicate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pools.json")
	s := store.NewFilePoolStore(path, adapter.NewFileSystem(), adapter.NewJSON())

	require.NoError(t, s.Append(ctx, testPool("moo_a")))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = s.Append(ctx, testPool("moo_a"))
	assert.ErrorIs(t, err, domain.ErrDuplicatePool)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFilePoolStore_LoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "corrupt", content: `{"id":`, wantErr: domain.ErrDecodeFailure},
		{name: "bad standard", content: `[{"id":"moo_a","initialNfts":[{"type":"erc20"}]}]`, wantErr: domain.ErrDecodeFailure},
		{name: "duplicate ids", content: `[{"id":"moo_a"},{"id":"moo_a"}]`, wantErr: domain.ErrDuplicatePool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pools.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := store.NewFilePoolStore(path, adapter.NewFileSystem(), adapter.NewJSON()).Load(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFilePoolStore_LoadRejectsMalformedInventory(t *testing.T) {
	const collection = `"address":"0x00000000000000000000000000000000000000a1"`

	tests := []struct {
		name      string
		inventory string
	}{
		{name: "unsorted ids", inventory: `[{` + collection + `,"type":"erc721","ids":[3,1,2]}]`},
		{name: "duplicate ids", inventory: `[{` + collection + `,"type":"erc721","ids":[1,2,2]}]`},
		{name: "negative id", inventory: `[{` + collection + `,"type":"erc721","ids":[-1,2]}]`},
		{name: "missing standard", inventory: `[{` + collection + `,"ids":[1]}]`},
		{name: "collection listed twice", inventory: `[{` + collection + `,"type":"erc721","ids":[1]},{` + collection + `,"type":"erc721","ids":[2]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pools.json")
			content := `[{"id":"moo_a","name":"Pool A","initialNfts":` + tt.inventory + `}]`
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			pools, err := store.NewFilePoolStore(path, adapter.NewFileSystem(), adapter.NewJSON()).Load(context.Background())
			assert.ErrorIs(t, err, domain.ErrDecodeFailure)
			assert.Nil(t, pools)
		})
	}
}

func TestFilePoolStore_AppendRejectsMalformedInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.json")
	s := store.NewFilePoolStore(path, adapter.NewFileSystem(), adapter.NewJSON())

	pool := testPool("moo_a")
	pool.InitialInventory[0].ItemIDs = []*big.Int{big.NewInt(2), big.NewInt(1)}

	err := s.Append(context.Background(), pool)
	assert.ErrorIs(t, err, domain.ErrDecodeFailure)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFilePoolStore_FileSystemErrors(t *testing.T) {
	ioErr := errors.New("input/output error")

	tests := []struct {
		name  string
		setup func(fs *mocks.MockFileSystem)
	}{
		{
			name: "stat",
			setup: func(fs *mocks.MockFileSystem) {
				fs.EXPECT().Exists("pools.json").Return(false, ioErr)
			},
		},
		{
			name: "read",
			setup: func(fs *mocks.MockFileSystem) {
				fs.EXPECT().Exists("pools.json").Return(true, nil)
				fs.EXPECT().ReadFile("pools.json").Return(nil, ioErr)
			},
		},
		{
			name: "write",
			setup: func(fs *mocks.MockFileSystem) {
				fs.EXPECT().Exists("pools.json").Return(false, nil)
				fs.EXPECT().WriteFile("pools.json", gomock.Any()).Return(ioErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fs := mocks.NewMockFileSystem(ctrl)
			tt.setup(fs)

			err := store.NewFilePoolStore("pools.json", fs, adapter.NewJSON()).Append(context.Background(), testPool("moo_a"))
			assert.ErrorIs(t, err, ioErr)
		})
	}
}
