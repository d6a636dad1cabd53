package cache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/store/schema"
)

// postgresCache stores documents in the metadata_cache table
type postgresCache struct {
	db   *gorm.DB
	json adapter.JSON
}

// NewPostgresCache creates a cache backed by db. Migrate must have been called once.
func NewPostgresCache(db *gorm.DB, json adapter.JSON) Cache {
	return &postgresCache{db: db, json: json}
}

// Migrate creates the cache table if needed
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&schema.MetadataCacheEntry{}); err != nil {
		return fmt.Errorf("failed to migrate metadata cache: %w", err)
	}
	return nil
}

func (c *postgresCache) Get(ctx context.Context, key domain.ItemKey) (*domain.MetadataDocument, error) {
	var entry schema.MetadataCacheEntry
	err := c.db.WithContext(ctx).Where("key = ?", key.String()).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var doc domain.MetadataDocument
	if err := c.json.Unmarshal(entry.Document, &doc); err != nil {
		return nil, fmt.Errorf("%w: cache entry %s: %v", domain.ErrDecodeFailure, entry.Key, err)
	}

	return &doc, nil
}

func (c *postgresCache) Put(ctx context.Context, doc *domain.MetadataDocument) error {
	key := doc.Key()

	data, err := c.json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal document: %v", domain.ErrCacheWriteFailure, err)
	}

	digest, err := Digest(c.json, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheWriteFailure, err)
	}

	entry := schema.MetadataCacheEntry{
		Key:        key.String(),
		Collection: key.CollectionAddress.Hex(),
		ItemID:     key.ItemID,
		Digest:     digest,
		Document:   datatypes.JSON(data),
	}

	result := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheWriteFailure, result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var existing schema.MetadataCacheEntry
	if err := c.db.WithContext(ctx).Select("digest").Where("key = ?", entry.Key).First(&existing).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheWriteFailure, err)
	}
	if existing.Digest != digest {
		return conflictError(key)
	}

	return nil
}
