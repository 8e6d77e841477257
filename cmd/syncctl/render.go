package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/database"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/market"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/tickers"
)

// cell escapes table separators.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func priceReport(r *pricesync.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Price sync: %s\n\n", r.Status())
	if r.LogID != "" {
		fmt.Fprintf(&b, "Log `%s`, %d ms.\n\n", r.LogID, r.DurationMs)
	}
	b.WriteString("| Total | Successful | Failed | Skipped |\n|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", r.TotalAssets, r.Successful, r.Failed, r.Skipped)

	if len(r.Updates) > 0 {
		b.WriteString("\n## Updated\n\n| Asset | Symbol | Old | New | Source |\n|---|---|---:|---:|---|\n")
		for _, u := range r.Updates {
			old := "-"
			if u.OldPrice.Valid {
				old = u.OldPrice.Decimal.String()
			}
			source := u.Source
			if u.Cached {
				source += " (cached)"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", cell(u.Name), u.Symbol, old, u.NewPrice.String(), source)
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n## Failed\n\n| Asset | Kind | Message |\n|---|---|---|\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(e.Name), e.Kind, cell(e.Message))
		}
	}
	return b.String()
}

func tickerReport(r *tickers.SyncReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Ticker sync: %s\n\n", r.SyncType)
	b.WriteString("| Type | Status | Total | Successful | Failed | Source | ms |\n|---|---|---:|---:|---:|---|---:|\n")
	for _, res := range r.Results {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %s | %d |\n",
			res.Type, res.Status, res.TotalRecords, res.Successful, res.Failed, res.Source, res.DurationMs)
	}
	for _, res := range r.Results {
		if res.Error != "" {
			fmt.Fprintf(&b, "\n- **%s**: %s\n", res.Type, res.Error)
		}
	}
	return b.String()
}

func searchReport(query string, hits []models.TickerCacheEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tickers matching `%s`\n\n", query)
	if len(hits) == 0 {
		b.WriteString("No matches.\n")
		return b.String()
	}
	b.WriteString("| Symbol | Name | Type | Category |\n|---|---|---|---|\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", h.Symbol, cell(h.Name), h.AssetType, cell(h.Category))
	}
	return b.String()
}

func quoteReport(p *market.PriceRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", p.Symbol, p.ExternalSymbol)
	fmt.Fprintf(&b, "**%s %s**", p.CurrentPrice.String(), p.Currency)
	if p.PreviousClose.Valid {
		fmt.Fprintf(&b, ", %s (%s%%) since previous close %s",
			signed(p.ChangeAmount.StringFixed(2)), signed(p.ChangePercent.StringFixed(2)), p.PreviousClose.Decimal.String())
	}
	fmt.Fprintf(&b, "\n\nSource %s at %s.\n", p.Source, p.Timestamp.Format(time.RFC3339))
	return b.String()
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}

func devUserReport(u *models.User, created bool, token string, ttl time.Duration) string {
	state := "existing"
	if created {
		state = "created"
	}
	return fmt.Sprintf("# Dev user\n\n- Email: %s (%s)\n- ID: `%s`\n- Token valid for %s:\n\n```\n%s\n```\n",
		u.Email, state, u.ID, ttl, token)
}

func migrationReport(action database.MigrateAction, s *database.MigrationState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Migrate %s\n\n", action)
	if s.Version == 0 {
		b.WriteString("No migrations applied.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Schema version **%d**", s.Version)
	if s.Dirty {
		b.WriteString(" (dirty: fix the failed migration and force the version)")
	}
	b.WriteString(".\n")
	return b.String()
}
