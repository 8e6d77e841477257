package tickers

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
)

const (
	MinQueryLength     = 2
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// Match scores.
const (
	scoreExactSymbol    = 100
	scoreSymbolPrefix   = 80
	scoreSymbolContains = 60
	scoreNamePrefix     = 40
	scoreNameContains   = 20
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ClampLimit applies the default and the upper bound to a requested limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// Search looks up entries whose symbol or name contains query, ignoring case.
// Candidates are taken in symbol order up to the clamped limit, then ranked
// by match quality; ties keep symbol order.
func (s *Store) Search(ctx context.Context, query string, assetType models.AssetType, limit int) ([]models.TickerCacheEntry, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil, apperrors.ErrInvalidQuery
	}

	pattern := "%" + likeEscaper.Replace(strings.ToUpper(q)) + "%"
	db := s.db.WithContext(ctx).
		Where(`UPPER(symbol) LIKE ? ESCAPE '\' OR UPPER(name) LIKE ? ESCAPE '\'`, pattern, pattern)
	if assetType != "" {
		db = db.Where("asset_type = ?", assetType)
	}

	var rows []models.TickerCacheEntry
	if err := db.Order("symbol ASC").Limit(ClampLimit(limit)).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return rank(q, rows), nil
}

// rank orders rows by descending score. Rows scoring zero are dropped.
func rank(query string, rows []models.TickerCacheEntry) []models.TickerCacheEntry {
	type scored struct {
		entry models.TickerCacheEntry
		score int
	}

	q := strings.ToUpper(query)
	ranked := make([]scored, 0, len(rows))
	for _, r := range rows {
		if sc := score(q, r); sc > 0 {
			ranked = append(ranked, scored{entry: r, score: sc})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]models.TickerCacheEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}
	return out
}

func score(upperQuery string, e models.TickerCacheEntry) int {
	symbol := strings.ToUpper(e.Symbol)
	name := strings.ToUpper(e.Name)

	switch {
	case symbol == upperQuery:
		return scoreExactSymbol
	case strings.HasPrefix(symbol, upperQuery):
		return scoreSymbolPrefix
	case strings.Contains(symbol, upperQuery):
		return scoreSymbolContains
	case strings.HasPrefix(name, upperQuery):
		return scoreNamePrefix
	case strings.Contains(name, upperQuery):
		return scoreNameContains
	}
	return 0
}
