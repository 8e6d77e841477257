package models

import (
	"time"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/uuid"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TickerCacheEntry is one tradable instrument in the local ticker directory.
// Rows are replaced wholesale per asset type, so there is no Base embed and no soft delete.
type TickerCacheEntry struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	AssetType   AssetType      `gorm:"type:varchar(20);not null;uniqueIndex:uq_ticker_cache_type_symbol" json:"assetType"`
	Symbol      string         `gorm:"size:32;not null;uniqueIndex:uq_ticker_cache_type_symbol" json:"symbol"`
	Name        string         `gorm:"not null" json:"name"`
	City        string         `json:"city,omitempty"`
	Category    string         `json:"category,omitempty"`
	ExtraData   datatypes.JSON `json:"extraData,omitempty"`
	DataSource  string         `gorm:"size:32" json:"dataSource"`
	LastUpdated time.Time      `gorm:"not null" json:"lastUpdated"`
}

// TableName overrides the pluralized default.
func (TickerCacheEntry) TableName() string { return "ticker_cache" }

// BeforeCreate hook generates a UUIDv7 for new records
func (e *TickerCacheEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	return nil
}
