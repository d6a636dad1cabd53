package cache

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
)

// fileCache stores one JSON file per item under <dir>/meta/<collection>/<id>.json
type fileCache struct {
	dir  string
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewFileCache creates a cache rooted at dir
func NewFileCache(dir string, fs adapter.FileSystem, json adapter.JSON) Cache {
	return &fileCache{dir: dir, fs: fs, json: json}
}

func (c *fileCache) path(key domain.ItemKey) string {
	return filepath.Join(c.dir, "meta", key.CollectionAddress.Hex(), key.ItemID+".json")
}

// Get returns the cached document. Unreadable entries are reported as misses so they get refetched.
func (c *fileCache) Get(ctx context.Context, key domain.ItemKey) (*domain.MetadataDocument, error) {
	path := c.path(key)

	exists, err := c.fs.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat cache entry %s: %w", path, err)
	}
	if !exists {
		return nil, nil
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", path, err)
	}

	var doc domain.MetadataDocument
	if err := c.json.Unmarshal(data, &doc); err != nil {
		logger.WarnCtx(ctx, "Ignoring corrupt cache entry", zap.String("path", path), zap.Error(err))
		return nil, nil
	}

	if doc.Key() != key {
		logger.WarnCtx(ctx, "Ignoring cache entry stored under the wrong key",
			zap.String("path", path),
			zap.String("entry_key", doc.Key().String()))
		return nil, nil
	}

	return &doc, nil
}

// Put writes the document unless an identical one is already stored
func (c *fileCache) Put(ctx context.Context, doc *domain.MetadataDocument) error {
	key := doc.Key()

	existing, err := c.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheWriteFailure, err)
	}
	if existing != nil {
		same, err := sameContent(c.json, existing, doc)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCacheWriteFailure, err)
		}
		if !same {
			return conflictError(key)
		}
		return nil
	}

	data, err := c.json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal document: %v", domain.ErrCacheWriteFailure, err)
	}

	if err := c.fs.WriteFile(c.path(key), data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheWriteFailure, err)
	}

	return nil
}

// sameContent compares two documents by canonical digest
func sameContent(json adapter.JSON, a, b *domain.MetadataDocument) (bool, error) {
	da, err := Digest(json, a)
	if err != nil {
		return false, err
	}
	db, err := Digest(json, b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}
