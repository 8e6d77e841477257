package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetType represents the kind of holding a user tracks.
type AssetType string

const (
	AssetTypeGold     AssetType = "GOLD"
	AssetTypeSilver   AssetType = "SILVER"
	AssetTypeStock    AssetType = "STOCK"
	AssetTypeFund     AssetType = "FUND"
	AssetTypeCrypto   AssetType = "CRYPTO"
	AssetTypeEurobond AssetType = "EUROBOND"
	AssetTypeETF      AssetType = "ETF"
)

// AssetTypes lists every supported asset type in display order.
var AssetTypes = []AssetType{
	AssetTypeGold,
	AssetTypeSilver,
	AssetTypeStock,
	AssetTypeFund,
	AssetTypeCrypto,
	AssetTypeEurobond,
	AssetTypeETF,
}

// ParseAssetType matches s against the supported types, ignoring case.
func ParseAssetType(s string) (AssetType, bool) {
	candidate := AssetType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range AssetTypes {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}

// Asset is a user-owned holding whose price is kept current by the price sync.
type Asset struct {
	Base
	UserID       string              `gorm:"type:uuid;not null;index" json:"user_id"`
	AssetType    AssetType           `gorm:"type:varchar(20);not null;index" json:"asset_type"`
	Name         string              `gorm:"not null" json:"name"`
	Symbol       string              `gorm:"size:32" json:"symbol,omitempty"`
	Category     string              `json:"category,omitempty"`
	Currency     string              `gorm:"size:3;not null;default:'TRY'" json:"currency"`
	CurrentPrice decimal.NullDecimal `gorm:"type:numeric(20,8)" json:"current_price"`
	LastUpdated  *time.Time          `json:"last_updated,omitempty"`
	Transactions []Transaction       `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"transactions,omitempty"`
}

// HasPrice reports whether the asset carries a usable stored price.
func (a *Asset) HasPrice() bool {
	return a.CurrentPrice.Valid && a.CurrentPrice.Decimal.IsPositive()
}
