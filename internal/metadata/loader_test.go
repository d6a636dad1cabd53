package metadata_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/cache"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/metadata"
	"github.com/feral-file/prize-indexer/internal/mocks"
)

var otherCollection = common.HexToAddress("0x3C1e8a2B6d9F0c4E5a7b8D2f1E6c9A0b4D3e2F10")

type testLoaderMocks struct {
	ctrl     *gomock.Controller
	resolver *mocks.MockMetadataResolver
	cache    *mocks.MockCache
	loader   *metadata.Loader
}

func setupTestLoader(t *testing.T) *testLoaderMocks {
	ctrl := gomock.NewController(t)
	tm := &testLoaderMocks{
		ctrl:     ctrl,
		resolver: mocks.NewMockMetadataResolver(ctrl),
		cache:    mocks.NewMockCache(ctrl),
	}

	loader, err := metadata.NewLoader(tm.resolver, tm.cache, 2)
	require.NoError(t, err)
	tm.loader = loader
	return tm
}

func doc(collection common.Address, id int64, name string) *domain.MetadataDocument {
	return domain.NewMetadataDocument(collection, big.NewInt(id), map[string]interface{}{"name": name})
}

func pool(id string, entries ...domain.InventoryEntry) domain.PoolConfig {
	return domain.PoolConfig{ID: id, Name: id, InitialInventory: entries}
}

func entry(collection common.Address, standard domain.AssetStandard, ids ...int64) domain.InventoryEntry {
	e := domain.InventoryEntry{CollectionAddress: collection, Standard: standard}
	for _, id := range ids {
		e.ItemIDs = append(e.ItemIDs, big.NewInt(id))
	}
	return e
}

func TestNewLoader_InvalidConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := metadata.NewLoader(mocks.NewMockMetadataResolver(ctrl), mocks.NewMockCache(ctrl), 0)
	assert.Error(t, err)
}

func TestLoader_Load_FetchesMissesOnly(t *testing.T) {
	tm := setupTestLoader(t)
	ctx := context.Background()

	cached := doc(collection, 1, "Cached")
	fetched := doc(collection, 2, "Fetched")

	tm.cache.EXPECT().Get(gomock.Any(), domain.NewItemKey(collection, big.NewInt(1))).Return(cached, nil)
	tm.cache.EXPECT().Get(gomock.Any(), domain.NewItemKey(collection, big.NewInt(2))).Return(nil, nil)
	tm.resolver.EXPECT().Resolve(gomock.Any(), collection, domain.StandardERC721, big.NewInt(2)).Return(fetched, nil)
	tm.cache.EXPECT().Put(gomock.Any(), fetched).Return(nil)

	docs, err := tm.loader.Load(ctx, []domain.PoolConfig{
		pool("moo_a", entry(collection, domain.StandardERC721, 1, 2)),
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Cached", docs[domain.NewItemKey(collection, big.NewInt(1))].Name)
	assert.Equal(t, "Fetched", docs[domain.NewItemKey(collection, big.NewInt(2))].Name)
}

func TestLoader_Load_SecondRunServedFromFileCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockMetadataResolver(ctrl)
	fileCache := cache.NewFileCache(t.TempDir(), adapter.NewFileSystem(), adapter.NewJSON())

	loader, err := metadata.NewLoader(resolver, fileCache, 2)
	require.NoError(t, err)

	fetched := domain.NewMetadataDocument(collection, big.NewInt(9), map[string]interface{}{
		"name":       "Ticket",
		"attributes": []interface{}{map[string]interface{}{"trait_type": "tier", "value": json.Number("1")}},
	})
	resolver.EXPECT().Resolve(gomock.Any(), collection, domain.StandardERC721, big.NewInt(9)).Return(fetched, nil).Times(1)

	pools := []domain.PoolConfig{pool("moo_a", entry(collection, domain.StandardERC721, 9))}

	first, err := loader.Load(context.Background(), pools)
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), pools)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first[fetched.Key()])
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second[fetched.Key()])
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
	assert.Equal(t, "Ticket", second[fetched.Key()].Name)
}

func TestLoader_Load_DeduplicatesAcrossPools(t *testing.T) {
	tm := setupTestLoader(t)

	shared := doc(collection, 7, "Shared")
	other := doc(otherCollection, 7, "Other")

	// One lookup per distinct item even though two pools hold collection:7
	tm.cache.EXPECT().Get(gomock.Any(), shared.Key()).Return(nil, nil).Times(1)
	tm.cache.EXPECT().Get(gomock.Any(), other.Key()).Return(nil, nil).Times(1)
	tm.resolver.EXPECT().Resolve(gomock.Any(), collection, domain.StandardERC721, big.NewInt(7)).Return(shared, nil).Times(1)
	tm.resolver.EXPECT().Resolve(gomock.Any(), otherCollection, domain.StandardERC1155, big.NewInt(7)).Return(other, nil).Times(1)
	tm.cache.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	docs, err := tm.loader.Load(context.Background(), []domain.PoolConfig{
		pool("moo_a", entry(collection, domain.StandardERC721, 7)),
		pool("moo_b", entry(collection, domain.StandardERC721, 7), entry(otherCollection, domain.StandardERC1155, 7)),
	})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestLoader_Load_CacheWriteFailureIsNotFatal(t *testing.T) {
	tm := setupTestLoader(t)
	fetched := doc(collection, 3, "Ticket")

	tm.cache.EXPECT().Get(gomock.Any(), fetched.Key()).Return(nil, nil)
	tm.resolver.EXPECT().Resolve(gomock.Any(), collection, domain.StandardERC721, big.NewInt(3)).Return(fetched, nil)
	tm.cache.EXPECT().Put(gomock.Any(), fetched).Return(domain.ErrCacheWriteFailure)

	docs, err := tm.loader.Load(context.Background(), []domain.PoolConfig{
		pool("moo_a", entry(collection, domain.StandardERC721, 3)),
	})
	require.NoError(t, err)
	assert.Equal(t, fetched, docs[fetched.Key()])
}

func TestLoader_Load_Errors(t *testing.T) {
	key := domain.NewItemKey(collection, big.NewInt(4))
	readErr := errors.New("permission denied")
	putErr := errors.New("disk full")

	tests := []struct {
		name    string
		setup   func(tm *testLoaderMocks)
		wantErr error
	}{
		{
			name: "cache read failure",
			setup: func(tm *testLoaderMocks) {
				tm.cache.EXPECT().Get(gomock.Any(), key).Return(nil, readErr)
			},
			wantErr: readErr,
		},
		{
			name: "resolve failure",
			setup: func(tm *testLoaderMocks) {
				tm.cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
				tm.resolver.EXPECT().Resolve(gomock.Any(), collection, domain.StandardERC721, big.NewInt(4)).
					Return(nil, domain.ErrUpstreamUnavailable)
			},
			wantErr: domain.ErrUpstreamUnavailable,
		},
		{
			name: "unexpected cache write error",
			setup: func(tm *testLoaderMocks) {
				tm.cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
				tm.resolver.EXPECT().Resolve(gomock.Any(), collection, domain.StandardERC721, big.NewInt(4)).
					Return(doc(collection, 4, "Ticket"), nil)
				tm.cache.EXPECT().Put(gomock.Any(), gomock.Any()).Return(putErr)
			},
			wantErr: putErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestLoader(t)
			tt.setup(tm)

			docs, err := tm.loader.Load(context.Background(), []domain.PoolConfig{
				pool("moo_a", entry(collection, domain.StandardERC721, 4)),
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, docs)
		})
	}
}

func TestLoader_Load_Empty(t *testing.T) {
	tm := setupTestLoader(t)

	docs, err := tm.loader.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
