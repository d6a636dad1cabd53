// Package cache persists fetched metadata documents so that repeated runs skip the network.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
)

// Cache maps an item key to its metadata document.
// Entries are append-only: once written, a key never changes content.
//
//go:generate mockgen -source=cache.go -destination=../mocks/cache.go -package=mocks -mock_names=Cache=MockCache
type Cache interface {
	// Get returns the cached document, or nil when the item must be fetched
	Get(ctx context.Context, key domain.ItemKey) (*domain.MetadataDocument, error)

	// Put stores a document. Storing identical content twice is a no-op;
	// storing different content under an existing key fails.
	Put(ctx context.Context, doc *domain.MetadataDocument) error
}

// Digest returns the hex sha256 of the canonical (RFC 8785) JSON form of doc
func Digest(json adapter.JSON, doc *domain.MetadataDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize document: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// conflictError reports an attempt to overwrite a key with different content
func conflictError(key domain.ItemKey) error {
	return fmt.Errorf("%w: %s already cached with different content", domain.ErrCacheWriteFailure, key)
}
