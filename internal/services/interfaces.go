package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pagination"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
)

// CreateAssetInput holds the fields of a new asset. When InitialTransaction is
// set, the asset is created together with that transaction.
type CreateAssetInput struct {
	AssetType          models.AssetType
	Name               string
	Symbol             string
	Category           string
	Currency           string
	InitialTransaction *TransactionInput
}

// TransactionInput holds the fields of a new transaction.
type TransactionInput struct {
	Type         models.TransactionType
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Date         time.Time
	Notes        string
}

// TransactionUpdate holds optional transaction changes. Nil fields are left as is.
type TransactionUpdate struct {
	Type         *models.TransactionType
	Quantity     *decimal.Decimal
	PricePerUnit *decimal.Decimal
	Date         *time.Time
	Notes        *string
}

// AssetServicer defines the contract for asset and transaction business logic.
// It is also the asset store of the price sync.
type AssetServicer interface {
	pricesync.AssetStore
	CreateAsset(ctx context.Context, userID string, in CreateAssetInput) (*models.Asset, error)
	GetUserAssets(ctx context.Context, userID string, assetType models.AssetType, page pagination.PageRequest) (*pagination.Page[models.Asset], error)
	GetAssetByID(ctx context.Context, userID, assetID string) (*models.Asset, error)
	SetManualPrice(ctx context.Context, userID, assetID string, price decimal.Decimal) (*models.Asset, error)
	DeleteAsset(ctx context.Context, userID, assetID string) error
	AddTransaction(ctx context.Context, userID, assetID string, in TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, in TransactionUpdate) (*models.Transaction, error)
}

// SyncLogServicer records and reads price and ticker sync history.
type SyncLogServicer interface {
	Start(ctx context.Context, entry *models.SyncLog) error
	Finish(ctx context.Context, entry *models.SyncLog) error
	LastCompleted(ctx context.Context, kind models.SyncKind, syncType string) (*models.SyncLog, error)
	Recent(ctx context.Context, kind models.SyncKind, limit int) ([]models.SyncLog, error)
	RecentForUser(ctx context.Context, kind models.SyncKind, userID string, limit int) ([]models.SyncLog, error)
}

// UserServicer defines the contract for the local user rows.
type UserServicer interface {
	EnsureUser(ctx context.Context, email, password, firstName, lastName string) (*models.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
