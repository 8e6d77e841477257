package testutil_test

import (
	"testing"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "assets", "transactions", "ticker_cache", "sync_logs", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}

	asset := testutil.CreateTestAsset(t, db, user.ID, models.AssetTypeStock, "Garanti", "GARAN")
	if asset.HasPrice() {
		t.Error("new asset should not carry a price")
	}

	tx := testutil.CreateTestTransaction(t, db, asset, "3", "12.5")
	if tx.TotalAmount.String() != "37.5" {
		t.Errorf("expected total 37.5, got %s", tx.TotalAmount)
	}

	entry := testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "GARAN", "GARANTI BANKASI")
	if entry.ID == "" {
		t.Error("ticker entry should have an ID")
	}
}

func TestAssertAppError(t *testing.T) {
	testutil.AssertAppError(t, errors.ErrInvalidQuery, "INVALID_QUERY")
	testutil.AssertAppError(t, errors.Wrap(errors.ErrAssetNotFound, nil), "ASSET_NOT_FOUND")
}

func TestAssertKind(t *testing.T) {
	testutil.AssertKind(t, errors.Wrap(errors.ErrProviderUnreachable, nil), errors.KindProviderUnreachable)
	testutil.AssertKind(t, errors.ErrAssetNotFound, errors.KindInternal)
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
