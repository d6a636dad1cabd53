package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/feral-file/prize-indexer/internal/domain"
)

// memoryCache keeps recently used documents in process in front of a durable cache
type memoryCache struct {
	next  Cache
	items *lru.Cache[domain.ItemKey, *domain.MetadataDocument]
}

// NewMemoryCache wraps next with an LRU of the given size
func NewMemoryCache(size int, next Cache) (Cache, error) {
	items, err := lru.New[domain.ItemKey, *domain.MetadataDocument](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	return &memoryCache{next: next, items: items}, nil
}

func (c *memoryCache) Get(ctx context.Context, key domain.ItemKey) (*domain.MetadataDocument, error) {
	if doc, ok := c.items.Get(key); ok {
		return doc, nil
	}

	doc, err := c.next.Get(ctx, key)
	if err != nil || doc == nil {
		return doc, err
	}

	c.items.Add(key, doc)
	return doc, nil
}

// Put writes through to the durable cache and only remembers documents it accepted
func (c *memoryCache) Put(ctx context.Context, doc *domain.MetadataDocument) error {
	if err := c.next.Put(ctx, doc); err != nil {
		return err
	}
	c.items.Add(doc.Key(), doc)
	return nil
}
