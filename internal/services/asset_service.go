package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pagination"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
)

// assetService handles asset and transaction business logic.
type assetService struct {
	db            *gorm.DB
	localCurrency string
}

// NewAssetService creates a new AssetServicer. Assets created without a
// currency are denominated in localCurrency.
func NewAssetService(db *gorm.DB, localCurrency string) AssetServicer {
	if localCurrency == "" {
		localCurrency = "TRY"
	}
	return &assetService{db: db, localCurrency: localCurrency}
}

// CreateAsset creates an asset owned by userID.
func (s *assetService) CreateAsset(ctx context.Context, userID string, in CreateAssetInput) (*models.Asset, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Asset name is required")
	}
	if _, ok := models.ParseAssetType(string(in.AssetType)); !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unsupported asset type")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.localCurrency
	}

	asset := &models.Asset{
		UserID:    userID,
		AssetType: in.AssetType,
		Name:      name,
		Symbol:    strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Category:  strings.TrimSpace(in.Category),
		Currency:  currency,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if in.InitialTransaction == nil {
			return nil
		}
		txn, err := newTransaction(asset, *in.InitialTransaction)
		if err != nil {
			return err
		}
		if err := tx.Create(txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		asset.Transactions = []models.Transaction{*txn}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// GetUserAssets returns a paginated list of the user's assets, optionally
// restricted to one asset type.
func (s *assetService) GetUserAssets(ctx context.Context, userID string, assetType models.AssetType, page pagination.PageRequest) (*pagination.Page[models.Asset], error) {
	page.Defaults()

	query := s.db.WithContext(ctx).Model(&models.Asset{}).Where("user_id = ?", userID)
	if assetType != "" {
		query = query.Where("asset_type = ?", assetType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets []models.Asset
	if err := query.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return pagination.NewPage(assets, page, total), nil
}

// GetAssetByID returns the asset with its transactions, scoped to the user.
func (s *assetService) GetAssetByID(ctx context.Context, userID, assetID string) (*models.Asset, error) {
	var asset models.Asset
	err := s.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("transaction_date DESC")
		}).
		Where("id = ? AND user_id = ?", assetID, userID).
		First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &asset, nil
}

// SetManualPrice stores a user-entered price.
func (s *assetService) SetManualPrice(ctx context.Context, userID, assetID string, price decimal.Decimal) (*models.Asset, error) {
	if !price.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price must be greater than zero")
	}

	asset, err := s.GetAssetByID(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.Asset{}).
		Where("id = ?", asset.ID).
		Updates(map[string]any{"current_price": price, "last_updated": now}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	asset.CurrentPrice = decimal.NewNullDecimal(price)
	asset.LastUpdated = &now
	return asset, nil
}

// DeleteAsset permanently removes an asset and its transactions.
func (s *assetService) DeleteAsset(ctx context.Context, userID, assetID string) error {
	asset, err := s.GetAssetByID(ctx, userID, assetID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("asset_id = ?", asset.ID).Delete(&models.Transaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Delete(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// AddTransaction records a buy or sell against the user's asset.
func (s *assetService) AddTransaction(ctx context.Context, userID, assetID string, in TransactionInput) (*models.Transaction, error) {
	asset, err := s.GetAssetByID(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}

	txn, err := newTransaction(asset, in)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return txn, nil
}

// UpdateTransaction applies the non-nil fields of in. The total is recomputed
// by the model on save.
func (s *assetService) UpdateTransaction(ctx context.Context, userID, transactionID string, in TransactionUpdate) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if in.Type != nil {
		if *in.Type != models.TransactionTypeBuy && *in.Type != models.TransactionTypeSell {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Transaction type must be BUY or SELL")
		}
		txn.Type = *in.Type
	}
	if in.Quantity != nil {
		if !in.Quantity.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity must be greater than zero")
		}
		txn.Quantity = *in.Quantity
	}
	if in.PricePerUnit != nil {
		if !in.PricePerUnit.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price per unit must be greater than zero")
		}
		txn.PricePerUnit = *in.PricePerUnit
	}
	if in.Date != nil {
		txn.TransactionDate = *in.Date
	}
	if in.Notes != nil {
		txn.Notes = *in.Notes
	}

	if err := s.db.WithContext(ctx).Save(&txn).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &txn, nil
}

func newTransaction(asset *models.Asset, in TransactionInput) (*models.Transaction, error) {
	if in.Type == "" {
		in.Type = models.TransactionTypeBuy
	}
	if in.Type != models.TransactionTypeBuy && in.Type != models.TransactionTypeSell {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Transaction type must be BUY or SELL")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity must be greater than zero")
	}
	if !in.PricePerUnit.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price per unit must be greater than zero")
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return &models.Transaction{
		AssetID:         asset.ID,
		UserID:          asset.UserID,
		Type:            in.Type,
		Quantity:        in.Quantity,
		PricePerUnit:    in.PricePerUnit,
		TransactionDate: date,
		Notes:           strings.TrimSpace(in.Notes),
	}, nil
}

// ListForSync implements pricesync.AssetStore.
func (s *assetService) ListForSync(ctx context.Context, q pricesync.AssetQuery) ([]models.Asset, error) {
	query := s.db.WithContext(ctx).Model(&models.Asset{})
	if q.OwnerID != "" {
		query = query.Where("user_id = ?", q.OwnerID)
	}
	switch {
	case len(q.AssetIDs) > 0:
		query = query.Where("id IN ?", q.AssetIDs)
	case len(q.AssetTypes) > 0:
		query = query.Where("asset_type IN ?", q.AssetTypes)
	}

	var assets []models.Asset
	if err := query.Order("id ASC").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return assets, nil
}

// ApplySyncedPrice implements pricesync.AssetStore.
func (s *assetService) ApplySyncedPrice(ctx context.Context, assetID string, price decimal.Decimal, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Asset{}).
		Where("id = ?", assetID).
		Updates(map[string]any{"current_price": price, "last_updated": at.UTC()})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAssetNotFound
	}
	return nil
}
