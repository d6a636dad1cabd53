package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Report is the point-in-time snapshot of all tracked pools rendered at the end of an update run
type Report struct {
	GeneratedAt time.Time
	RunID       string
	Pools       []PoolReport
}

// PoolReport is the snapshot of one pool
type PoolReport struct {
	ID          string
	Name        string
	Collections []CollectionReport
}

// CollectionReport is the snapshot of one collection held by a pool.
// InitialCounts and RemainingCounts group items by metadata display name.
type CollectionReport struct {
	Address         common.Address
	Standard        AssetStandard
	Items           []ItemStatus
	InitialCounts   map[string]int
	RemainingCounts map[string]int
	Awarded         int
	Remaining       int
}

// ItemStatus is the status of one deposited item
type ItemStatus struct {
	ID       *big.Int
	Awarded  bool
	Metadata *MetadataDocument
}
