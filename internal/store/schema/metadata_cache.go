package schema

import (
	"time"

	"gorm.io/datatypes"
)

// MetadataCacheEntry stores one fetched metadata document.
// Rows are insert-only; Digest is the sha256 of the canonical JSON document.
type MetadataCacheEntry struct {
	Key        string         `gorm:"primaryKey;type:text"`
	Collection string         `gorm:"type:varchar(42);not null;index"`
	ItemID     string         `gorm:"type:numeric(78,0);not null"`
	Digest     string         `gorm:"type:char(64);not null"`
	Document   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
}

func (MetadataCacheEntry) TableName() string {
	return "metadata_cache"
}
