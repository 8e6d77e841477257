package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType represents the direction of a trade
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// Transaction is a buy or sell event against one asset.
type Transaction struct {
	Base
	AssetID         string          `gorm:"type:uuid;not null;index" json:"asset_id"`
	UserID          string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Type            TransactionType `gorm:"type:varchar(4);not null" json:"type"`
	Quantity        decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"quantity"`
	PricePerUnit    decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price_per_unit"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(28,8);not null" json:"total_amount"`
	TransactionDate time.Time       `gorm:"not null" json:"transaction_date"`
	Notes           string          `json:"notes,omitempty"`
}

// BeforeSave keeps total_amount equal to quantity × price_per_unit on every write.
func (t *Transaction) BeforeSave(tx *gorm.DB) error {
	t.TotalAmount = t.Quantity.Mul(t.PricePerUnit)
	return nil
}
