package catalog

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
)

// Pool is one entry of the published pool catalogue
type Pool struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	VaultType            string         `json:"vaultType"`
	PrizeStrategyAddress common.Address `json:"prizeStrategyAddress"`
}

// Client defines the interface for pool catalogue operations to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/catalog_client.go -package=mocks -mock_names=Client=MockCatalogClient
type Client interface {
	// NFTPool returns the catalogue entry of an NFT pool
	NFTPool(ctx context.Context, id string) (*Pool, error)
}

type catalogClient struct {
	httpClient adapter.HTTPClient
	url        string
}

// NewClient creates a client reading the catalogue published at url
func NewClient(httpClient adapter.HTTPClient, url string) Client {
	return &catalogClient{httpClient: httpClient, url: url}
}

// NFTPool fetches the catalogue and validates that id names an NFT pool
func (c *catalogClient) NFTPool(ctx context.Context, id string) (*Pool, error) {
	var pools []Pool
	if err := c.httpClient.Get(ctx, c.url, &pools); err != nil {
		return nil, fmt.Errorf("%w: failed to fetch pool catalogue: %v", domain.ErrUpstreamUnavailable, err)
	}

	for i := range pools {
		if pools[i].ID != id {
			continue
		}
		if pools[i].VaultType != domain.NFT_VAULT_TYPE {
			return nil, fmt.Errorf("%w: %s has vault type %q", domain.ErrNotNFTPool, id, pools[i].VaultType)
		}
		return &pools[i], nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrPoolUnknown, id)
}
