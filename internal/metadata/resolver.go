package metadata

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
	"github.com/feral-file/prize-indexer/internal/providers/ethereum"
)

// Config holds the gateways used to dereference content-addressed URIs
type Config struct {
	// IPFSGateways are tried in order for ipfs:// URIs
	IPFSGateways []string
	// ArweaveGateways are tried in order for ar:// URIs
	ArweaveGateways []string
}

// Resolver defines the interface for resolving the metadata document of an item
//
//go:generate mockgen -source=resolver.go -destination=../mocks/metadata_resolver.go -package=mocks -mock_names=Resolver=MockMetadataResolver
type Resolver interface {
	// Resolve reads the item's metadata URI on chain and fetches the document it points to
	Resolve(ctx context.Context, collection common.Address, standard domain.AssetStandard, id *big.Int) (*domain.MetadataDocument, error)
}

type resolver struct {
	ethClient  ethereum.Client
	httpClient adapter.HTTPClient
	json       adapter.JSON
	config     Config
}

// NewResolver creates a metadata resolver
func NewResolver(ethClient ethereum.Client, httpClient adapter.HTTPClient, json adapter.JSON, config Config) Resolver {
	if len(config.IPFSGateways) == 0 {
		config.IPFSGateways = []string{domain.DEFAULT_IPFS_GATEWAY}
	}
	if len(config.ArweaveGateways) == 0 {
		config.ArweaveGateways = []string{domain.DEFAULT_ARWEAVE_GATEWAY}
	}

	return &resolver{
		ethClient:  ethClient,
		httpClient: httpClient,
		json:       json,
		config:     config,
	}
}

func (r *resolver) Resolve(ctx context.Context, collection common.Address, standard domain.AssetStandard, id *big.Int) (*domain.MetadataDocument, error) {
	metadataURI, err := r.ethClient.TokenURI(ctx, collection, standard, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata URI: %w", err)
	}

	processedURI := processMetadataURI(metadataURI, standard, id)
	raw, err := r.fetchMetadataFromURI(ctx, processedURI)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata from URI %s: %w", processedURI, err)
	}

	return domain.NewMetadataDocument(collection, id, raw), nil
}

// processMetadataURI substitutes the {id} placeholder and normalizes gateway URLs.
// ERC-1155 clients substitute the 64 character lowercase hex form, ERC-721 the decimal form.
func processMetadataURI(uri string, standard domain.AssetStandard, id *big.Int) string {
	uri = strings.TrimSpace(uri)

	if strings.Contains(uri, "{id}") {
		substitute := id.String()
		if standard == domain.StandardERC1155 {
			substitute = fmt.Sprintf("%064x", id)
		}
		uri = strings.ReplaceAll(uri, "{id}", substitute)
	}

	// Rewrite public gateway URLs so the configured gateways are used
	if strings.HasPrefix(uri, "http") && strings.Contains(uri, "/ipfs/") {
		parts := strings.SplitN(uri, "/ipfs/", 2)
		uri = "ipfs://" + parts[1]
	}

	return uri
}

// fetchMetadataFromURI fetches metadata from a given URI, handling different protocols
func (r *resolver) fetchMetadataFromURI(ctx context.Context, uri string) (map[string]interface{}, error) {
	switch {
	case strings.HasPrefix(uri, "data:"):
		return r.parseDataURI(uri)
	case strings.HasPrefix(uri, "ipfs://"):
		path := strings.TrimPrefix(strings.TrimPrefix(uri, "ipfs://"), "ipfs/")
		return r.fetchFromGateways(ctx, r.config.IPFSGateways, "/ipfs/"+path)
	case strings.HasPrefix(uri, "ar://"):
		return r.fetchFromGateways(ctx, r.config.ArweaveGateways, "/"+strings.TrimPrefix(uri, "ar://"))
	case strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://"):
		return r.fetchFromHTTP(ctx, uri)
	default:
		return nil, fmt.Errorf("%w: unsupported URI scheme: %s", domain.ErrDecodeFailure, uri)
	}
}

// parseDataURI parses data:application/json[;base64],<payload>
func (r *resolver) parseDataURI(uri string) (map[string]interface{}, error) {
	parts := strings.SplitN(strings.TrimPrefix(uri, "data:"), ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: invalid data URI format", domain.ErrDecodeFailure)
	}

	mediaType, payload := parts[0], parts[1]

	var data []byte
	if strings.HasSuffix(mediaType, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode base64: %v", domain.ErrDecodeFailure, err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to unescape data URI: %v", domain.ErrDecodeFailure, err)
		}
		data = []byte(unescaped)
	}

	return r.decodeDocument(data)
}

// fetchFromGateways tries each gateway in order and returns the first document fetched
func (r *resolver) fetchFromGateways(ctx context.Context, gateways []string, path string) (map[string]interface{}, error) {
	var lastErr error
	for _, gateway := range gateways {
		metadata, err := r.fetchFromHTTP(ctx, strings.TrimSuffix(gateway, "/")+path)
		if err == nil {
			return metadata, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger.WarnCtx(ctx, "Gateway fetch failed", zap.String("gateway", gateway), zap.String("path", path), zap.Error(err))
		lastErr = err
	}

	return nil, fmt.Errorf("failed to fetch from all gateways: %w", lastErr)
}

// fetchFromHTTP fetches metadata from an HTTP(S) URL
func (r *resolver) fetchFromHTTP(ctx context.Context, url string) (map[string]interface{}, error) {
	body, err := r.httpClient.GetBytes(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	return r.decodeDocument(body)
}

// decodeDocument rejects payloads that are not JSON text before decoding them
func (r *resolver) decodeDocument(data []byte) (map[string]interface{}, error) {
	mime := mimetype.Detect(data)
	if !mime.Is("application/json") && !mime.Is("text/plain") {
		return nil, fmt.Errorf("%w: unexpected content type %s", domain.ErrDecodeFailure, mime.String())
	}

	var metadata map[string]interface{}
	if err := r.json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", domain.ErrDecodeFailure, err)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata is not a JSON object", domain.ErrDecodeFailure)
	}

	return metadata, nil
}
