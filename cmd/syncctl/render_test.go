package main

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/database"
	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/market"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/tickers"
)

func TestPriceReport(t *testing.T) {
	md := priceReport(&pricesync.Result{
		LogID:       "log-1",
		TotalAssets: 3,
		Successful:  1,
		Failed:      1,
		Skipped:     1,
		Updates: []pricesync.PriceUpdate{
			{Name: "Türk Hava Yolları", Symbol: "THYAO", NewPrice: decimal.RequireFromString("287.5"), Source: "yahoo", Cached: true},
		},
		Errors: []pricesync.AssetError{
			{Name: "A|B", Kind: apperrors.KindPriceUnavailable, Message: "Failed to update A|B: No price available for this symbol"},
		},
	})

	for _, want := range []string{
		"# Price sync: partial",
		"| 3 | 1 | 1 | 1 |",
		"| Türk Hava Yolları | THYAO | - | 287.5 | yahoo (cached) |",
		`| A\|B | PRICE_UNAVAILABLE |`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected report to contain %q\n%s", want, md)
		}
	}
}

func TestTickerReport(t *testing.T) {
	md := tickerReport(&tickers.SyncReport{
		SyncType: tickers.SyncTypeFull,
		Results: []tickers.CategoryResult{
			{Type: models.AssetTypeStock, Status: models.SyncStatusCompleted, TotalRecords: 2, Successful: 2, Source: "kap"},
			{Type: models.AssetTypeFund, Status: models.SyncStatusFailed, Error: "feed returned no entries"},
		},
	})
	if !strings.Contains(md, "| STOCK | completed | 2 | 2 | 0 | kap |") {
		t.Errorf("missing stock row\n%s", md)
	}
	if !strings.Contains(md, "**FUND**: feed returned no entries") {
		t.Errorf("missing fund error\n%s", md)
	}
}

func TestSearchReportEmpty(t *testing.T) {
	if md := searchReport("zz", nil); !strings.Contains(md, "No matches.") {
		t.Errorf("unexpected report %q", md)
	}
}

func TestQuoteReport(t *testing.T) {
	md := quoteReport(&market.PriceRecord{
		Symbol:         "THYAO",
		ExternalSymbol: "THYAO.IS",
		CurrentPrice:   decimal.RequireFromString("287.5"),
		PreviousClose:  decimal.NewNullDecimal(decimal.RequireFromString("280")),
		ChangeAmount:   decimal.RequireFromString("7.5"),
		ChangePercent:  decimal.RequireFromString("2.678571"),
		Currency:       "TRY",
		Timestamp:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Source:         "yahoo",
	})
	if !strings.Contains(md, "**287.5 TRY**, +7.50 (+2.68%) since previous close 280") {
		t.Errorf("unexpected quote line\n%s", md)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" STOCK, ,FUND,")
	if len(got) != 2 || got[0] != "STOCK" || got[1] != "FUND" {
		t.Errorf("unexpected split %v", got)
	}
	if splitList("") != nil {
		t.Error("expected nil for an empty value")
	}
}

func TestMigrationReport(t *testing.T) {
	md := migrationReport(database.MigrateUp, &database.MigrationState{Version: 1})
	if !strings.Contains(md, "Schema version **1**") || strings.Contains(md, "dirty") {
		t.Errorf("unexpected report:\n%s", md)
	}

	md = migrationReport(database.MigrateVersion, &database.MigrationState{Version: 1, Dirty: true})
	if !strings.Contains(md, "dirty") {
		t.Errorf("expected dirty marker:\n%s", md)
	}

	md = migrationReport(database.MigrateDown, &database.MigrationState{})
	if !strings.Contains(md, "No migrations applied") {
		t.Errorf("expected empty state:\n%s", md)
	}
}
