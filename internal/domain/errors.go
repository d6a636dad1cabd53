package domain

import "errors"

var (
	// ErrConfigNotFound is returned when a pool id is absent from the pool store
	ErrConfigNotFound = errors.New("pool config not found")

	// ErrDuplicatePool is returned when registering a pool id that already exists
	ErrDuplicatePool = errors.New("pool already exists")

	// ErrUpstreamUnavailable is returned when a log source, call source or metadata source fails
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrDecodeFailure is returned when a log entry, call result or document does not match its schema
	ErrDecodeFailure = errors.New("decode failure")

	// ErrCacheWriteFailure is returned when a metadata document could not be persisted
	ErrCacheWriteFailure = errors.New("cache write failure")

	// ErrMissingMetadata is returned when an inventory item has no metadata document
	ErrMissingMetadata = errors.New("missing metadata")

	// ErrPoolUnknown is returned when the pool catalogue has no entry for a pool id
	ErrPoolUnknown = errors.New("pool unknown to catalogue")

	// ErrNotNFTPool is returned when the catalogue entry of a pool is not an NFT pool
	ErrNotNFTPool = errors.New("not an NFT pool")

	// ErrNoPools is returned when the pool store is empty
	ErrNoPools = errors.New("no pools configured")
)

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrCacheWriteFailure)
}
