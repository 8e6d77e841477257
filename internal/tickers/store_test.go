package tickers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/testutil"

	"gorm.io/gorm"
)

func countType(t *testing.T, db *gorm.DB, assetType models.AssetType) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.TickerCacheEntry{}).Where("asset_type = ?", assetType).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func fundEntries(codes ...string) []Entry {
	out := make([]Entry, 0, len(codes))
	for _, c := range codes {
		out = append(out, Entry{Symbol: c, Name: c + " Fonu", DataSource: "test"})
	}
	return out
}

func TestStore_ReplaceCategory_ReplacesWholesale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewStore(db, nil)
	ctx := context.Background()

	testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "GARAN", "GARANTI BANKASI")

	res, err := store.ReplaceCategory(ctx, models.AssetTypeFund, fundEntries("AAK", "AEF", "GAU"), PolicyBestEffort)
	testutil.AssertNoError(t, err)
	if res.Total != 3 || res.Successful != 3 || res.Failed != 0 {
		t.Errorf("unexpected first result %+v", res)
	}

	res, err = store.ReplaceCategory(ctx, models.AssetTypeFund, fundEntries("TGA", "GEA"), PolicyBestEffort)
	testutil.AssertNoError(t, err)
	if res.Successful != 2 {
		t.Errorf("expected 2 successful, got %d", res.Successful)
	}

	if n := countType(t, db, models.AssetTypeFund); n != 2 {
		t.Errorf("expected exactly 2 FUND rows, got %d", n)
	}
	if n := countType(t, db, models.AssetTypeStock); n != 1 {
		t.Errorf("expected STOCK rows untouched, got %d", n)
	}
}

func TestStore_ReplaceCategory_ConcurrentReplacesDoNotInterleave(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewStore(db, nil)
	ctx := context.Background()

	const writers = 8
	sizes := make(map[int64]bool, writers)
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 1; w <= writers; w++ {
		codes := make([]string, 0, w)
		for i := 0; i < w; i++ {
			codes = append(codes, fmt.Sprintf("F%d%02d", w, i))
		}
		sizes[int64(w)] = true

		wg.Add(1)
		go func(entries []Entry) {
			defer wg.Done()
			res, err := store.ReplaceCategory(ctx, models.AssetTypeFund, entries, PolicyBestEffort)
			if err == nil && res.Successful != len(entries) {
				err = fmt.Errorf("replace of %d rows stored %d", len(entries), res.Successful)
			}
			errs <- err
		}(fundEntries(codes...))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		testutil.AssertNoError(t, err)
	}
	n := countType(t, db, models.AssetTypeFund)
	if !sizes[n] {
		t.Fatalf("expected the rows of exactly one batch, got %d", n)
	}

	// Every remaining row belongs to the batch of that size.
	var symbols []string
	if err := db.Model(&models.TickerCacheEntry{}).Where("asset_type = ?", models.AssetTypeFund).
		Pluck("symbol", &symbols).Error; err != nil {
		t.Fatalf("pluck failed: %v", err)
	}
	batch := fmt.Sprintf("F%d", n)
	for _, sym := range symbols {
		if sym[:2] != batch {
			t.Errorf("row %s does not belong to batch %s", sym, batch)
		}
	}
}

func TestStore_ReplaceCategory_BestEffortCountsFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewStore(db, nil)

	entries := []Entry{
		{Symbol: "GARAN", Name: "GARANTI BANKASI"},
		{Symbol: "BROKEN", Name: ""},
		{Symbol: "garan", Name: "duplicate after normalization"},
		{Symbol: "THYAO", Name: "TURK HAVA YOLLARI"},
	}
	res, err := store.ReplaceCategory(context.Background(), models.AssetTypeStock, entries, PolicyBestEffort)
	testutil.AssertNoError(t, err)

	if res.Total != 4 || res.Successful != 2 || res.Failed != 2 {
		t.Errorf("expected 4/2/2, got %d/%d/%d", res.Total, res.Successful, res.Failed)
	}
	if res.RolledBack {
		t.Error("best effort replace with survivors should commit")
	}
	if len(res.Errors) != 2 {
		t.Errorf("expected 2 recorded errors, got %v", res.Errors)
	}
	if n := countType(t, db, models.AssetTypeStock); n != 2 {
		t.Errorf("expected 2 stored rows, got %d", n)
	}
}

func TestStore_ReplaceCategory_AllRowsFailedKeepsPrevious(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewStore(db, nil)
	ctx := context.Background()

	_, err := store.ReplaceCategory(ctx, models.AssetTypeFund, fundEntries("AAK", "AEF"), PolicyBestEffort)
	testutil.AssertNoError(t, err)

	res, err := store.ReplaceCategory(ctx, models.AssetTypeFund, []Entry{{Symbol: "", Name: "nameless"}}, PolicyBestEffort)
	testutil.AssertNoError(t, err)
	if !res.RolledBack {
		t.Error("expected rollback when every row failed")
	}
	if n := countType(t, db, models.AssetTypeFund); n != 2 {
		t.Errorf("expected previous 2 rows kept, got %d", n)
	}
}

func TestStore_ReplaceCategory_AtomicRollsBackOnFirstFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewStore(db, nil)
	ctx := context.Background()

	_, err := store.ReplaceCategory(ctx, models.AssetTypeFund, fundEntries("AAK"), PolicyAtomic)
	testutil.AssertNoError(t, err)

	entries := append(fundEntries("TGA", "GEA"), Entry{Symbol: "BAD"})
	res, err := store.ReplaceCategory(ctx, models.AssetTypeFund, entries, PolicyAtomic)
	testutil.AssertNoError(t, err)

	if !res.RolledBack || res.Successful != 0 || res.Failed != 1 {
		t.Errorf("unexpected atomic result %+v", res)
	}

	var rows []models.TickerCacheEntry
	testutil.AssertNoError(t, db.Where("asset_type = ?", models.AssetTypeFund).Find(&rows).Error)
	if len(rows) != 1 || rows[0].Symbol != "AAK" {
		t.Errorf("expected the original AAK row only, got %+v", rows)
	}
}

func TestStore_CountByType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewStore(db, nil)

	testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "GARAN", "GARANTI BANKASI")
	testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "THYAO", "TURK HAVA YOLLARI")
	testutil.CreateTestTickerEntry(t, db, models.AssetTypeFund, "AAK", "Ak Portfoy Altin Fonu")

	counts, err := store.CountByType(context.Background())
	testutil.AssertNoError(t, err)
	if counts[models.AssetTypeStock] != 2 || counts[models.AssetTypeFund] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestStore_Search(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewStore(db, nil)
	ctx := context.Background()

	testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "ALGYO", "ALARKO GAYRIMENKUL")
	testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "DOGAN", "DOGAN HOLDING")
	testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "GARAN", "TURKIYE GARANTI BANKASI")
	testutil.CreateTestTickerEntry(t, db, models.AssetTypeStock, "THYAO", "TURK HAVA YOLLARI")
	testutil.CreateTestTickerEntry(t, db, models.AssetTypeFund, "GAU", "Gedik Portfoy Altin Fonu")

	t.Run("ranks_symbol_prefix_first", func(t *testing.T) {
		got, err := store.Search(ctx, "ga", models.AssetTypeStock, 10)
		testutil.AssertNoError(t, err)

		want := []string{"GARAN", "DOGAN", "ALGYO"}
		if len(got) != len(want) {
			t.Fatalf("expected %d results, got %d", len(want), len(got))
		}
		for i, sym := range want {
			if got[i].Symbol != sym {
				t.Errorf("position %d: expected %s, got %s", i, sym, got[i].Symbol)
			}
		}
	})

	t.Run("exact_symbol_scores_highest", func(t *testing.T) {
		got, err := store.Search(ctx, "gau", "", 10)
		testutil.AssertNoError(t, err)
		if len(got) == 0 || got[0].Symbol != "GAU" {
			t.Errorf("expected GAU first, got %+v", got)
		}
	})

	t.Run("type_filter", func(t *testing.T) {
		got, err := store.Search(ctx, "ga", models.AssetTypeFund, 10)
		testutil.AssertNoError(t, err)
		if len(got) != 1 || got[0].Symbol != "GAU" {
			t.Errorf("expected only GAU, got %+v", got)
		}
	})

	t.Run("limit_applies", func(t *testing.T) {
		got, err := store.Search(ctx, "ga", "", 1)
		testutil.AssertNoError(t, err)
		if len(got) != 1 {
			t.Errorf("expected 1 result, got %d", len(got))
		}
	})

	t.Run("short_query", func(t *testing.T) {
		_, err := store.Search(ctx, "g", "", 10)
		testutil.AssertKind(t, err, apperrors.KindInvalidQuery)

		_, err = store.Search(ctx, "   g  ", "", 10)
		testutil.AssertKind(t, err, apperrors.KindInvalidQuery)
	})

	t.Run("wildcards_are_literal", func(t *testing.T) {
		got, err := store.Search(ctx, "%%", "", 10)
		testutil.AssertNoError(t, err)
		if len(got) != 0 {
			t.Errorf("expected no matches for literal %%%%, got %d", len(got))
		}
	})
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultSearchLimit},
		{-3, DefaultSearchLimit},
		{10, 10},
		{50, 50},
		{500, MaxSearchLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}
