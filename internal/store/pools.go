package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
)

// PoolStore defines the interface for the pool configuration store
//
//go:generate mockgen -source=pools.go -destination=../mocks/pool_store.go -package=mocks -mock_names=PoolStore=MockPoolStore
type PoolStore interface {
	// Load returns every registered pool in registration order. A missing store is empty.
	Load(ctx context.Context) ([]domain.PoolConfig, error)

	// Append registers a new pool and rewrites the whole store
	Append(ctx context.Context, pool domain.PoolConfig) error
}

type filePoolStore struct {
	path string
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewFilePoolStore creates a pool store backed by a JSON file
func NewFilePoolStore(path string, fs adapter.FileSystem, json adapter.JSON) PoolStore {
	return &filePoolStore{path: path, fs: fs, json: json}
}

func (s *filePoolStore) Load(ctx context.Context) ([]domain.PoolConfig, error) {
	exists, err := s.fs.Exists(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat pool store %s: %w", s.path, err)
	}
	if !exists {
		logger.DebugCtx(ctx, "Pool store does not exist yet", zap.String("path", s.path))
		return []domain.PoolConfig{}, nil
	}

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool store %s: %w", s.path, err)
	}

	var pools []domain.PoolConfig
	if err := s.json.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("%w: pool store %s: %v", domain.ErrDecodeFailure, s.path, err)
	}

	seen := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("%w: %s appears twice in %s", domain.ErrDuplicatePool, p.ID, s.path)
		}
		seen[p.ID] = struct{}{}

		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecodeFailure, s.path, err)
		}
	}

	if pools == nil {
		pools = []domain.PoolConfig{}
	}
	return pools, nil
}

func (s *filePoolStore) Append(ctx context.Context, pool domain.PoolConfig) error {
	if err := pool.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}

	pools, err := s.Load(ctx)
	if err != nil {
		return err
	}

	if _, ok := domain.FindPool(pools, pool.ID); ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicatePool, pool.ID)
	}

	data, err := s.json.MarshalIndent(append(pools, pool))
	if err != nil {
		return fmt.Errorf("failed to marshal pool store: %w", err)
	}

	if err := s.fs.WriteFile(s.path, data); err != nil {
		return fmt.Errorf("failed to write pool store %s: %w", s.path, err)
	}

	logger.InfoCtx(ctx, "Saved pool configuration", zap.String("pool_id", pool.ID), zap.String("path", s.path))
	return nil
}
