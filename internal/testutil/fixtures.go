package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAsset creates an unpriced asset of the given type.
func CreateTestAsset(t *testing.T, db *gorm.DB, userID string, assetType models.AssetType, name, symbol string) *models.Asset {
	t.Helper()

	if name == "" {
		name = fmt.Sprintf("Test Asset %d", nextID())
	}
	asset := &models.Asset{
		UserID:    userID,
		AssetType: assetType,
		Name:      name,
		Symbol:    symbol,
		Currency:  "TRY",
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestPricedAsset creates an asset carrying a stored price updated at updatedAt.
func CreateTestPricedAsset(t *testing.T, db *gorm.DB, userID string, assetType models.AssetType, symbol string, price float64, updatedAt time.Time) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		UserID:       userID,
		AssetType:    assetType,
		Name:         fmt.Sprintf("%s holding %d", symbol, nextID()),
		Symbol:       symbol,
		Currency:     "TRY",
		CurrentPrice: decimal.NewNullDecimal(decimal.NewFromFloat(price)),
		LastUpdated:  &updatedAt,
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestTransaction creates a buy transaction for the asset.
func CreateTestTransaction(t *testing.T, db *gorm.DB, asset *models.Asset, quantity, price string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		AssetID:         asset.ID,
		UserID:          asset.UserID,
		Type:            models.TransactionTypeBuy,
		Quantity:        decimal.RequireFromString(quantity),
		PricePerUnit:    decimal.RequireFromString(price),
		TransactionDate: time.Now(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestTickerEntry inserts one ticker directory row.
func CreateTestTickerEntry(t *testing.T, db *gorm.DB, assetType models.AssetType, symbol, name string) *models.TickerCacheEntry {
	t.Helper()

	entry := &models.TickerCacheEntry{
		AssetType:   assetType,
		Symbol:      symbol,
		Name:        name,
		DataSource:  "test",
		LastUpdated: time.Now().UTC(),
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to create test ticker entry: %v", err)
	}
	return entry
}
