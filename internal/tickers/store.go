// Package tickers maintains the local directory of tradable instruments used
// for autocomplete and symbol lookup. Each asset type is refreshed wholesale
// from a bulk feed.
package tickers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReplacePolicy decides what a per-row insert failure does to a category replace.
type ReplacePolicy string

const (
	// PolicyBestEffort counts failed rows and keeps the rest. The replace is
	// rolled back only when no row at all could be inserted.
	PolicyBestEffort ReplacePolicy = "best_effort"
	// PolicyAtomic rolls back the whole replace on the first failed row.
	PolicyAtomic ReplacePolicy = "atomic"
)

// Entry is one instrument as delivered by a feed.
type Entry struct {
	Symbol     string
	Name       string
	City       string
	Category   string
	Extra      map[string]any
	DataSource string
}

// ReplaceResult reports the outcome of ReplaceCategory.
type ReplaceResult struct {
	AssetType  models.AssetType `json:"type"`
	Total      int              `json:"total_records"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Duration   time.Duration    `json:"-"`
	RolledBack bool             `json:"rolled_back,omitempty"`
	Errors     []string         `json:"errors,omitempty"`
}

// maxRecordedErrors caps the per-row errors kept in a result.
const maxRecordedErrors = 20

var errReplaceAborted = errors.New("ticker replace aborted")

// Store persists ticker cache entries.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	mu    sync.Mutex
	locks map[models.AssetType]*sync.Mutex
}

// NewStore creates a Store. A nil clock uses time.Now.
func NewStore(db *gorm.DB, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{db: db, now: clock, locks: make(map[models.AssetType]*sync.Mutex)}
}

// categoryLock returns the single-writer lock for an asset type.
func (s *Store) categoryLock(t models.AssetType) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[t]
	if !ok {
		l = &sync.Mutex{}
		s.locks[t] = l
	}
	return l
}

// ReplaceCategory deletes every entry of assetType and inserts entries in one
// transaction. Each insert runs under its own savepoint, so a failed row does
// not poison the transaction. A replace that inserts nothing out of a
// non-empty batch is rolled back, leaving the previous rows in place.
func (s *Store) ReplaceCategory(ctx context.Context, assetType models.AssetType, entries []Entry, policy ReplacePolicy) (*ReplaceResult, error) {
	lock := s.categoryLock(assetType)
	lock.Lock()
	defer lock.Unlock()

	started := s.now()
	res := &ReplaceResult{AssetType: assetType, Total: len(entries)}
	refreshed := started.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_type = ?", assetType).Delete(&models.TickerCacheEntry{}).Error; err != nil {
			return err
		}

		for i, e := range entries {
			row, err := toModel(assetType, e, refreshed)
			if err == nil {
				sp := fmt.Sprintf("ticker_row_%d", i)
				if err = tx.SavePoint(sp).Error; err != nil {
					return err
				}
				if err = tx.Create(row).Error; err != nil {
					if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
						return rbErr
					}
				}
			}
			if err != nil {
				res.Failed++
				if len(res.Errors) < maxRecordedErrors {
					res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", e.Symbol, err))
				}
				if policy == PolicyAtomic {
					return errReplaceAborted
				}
				continue
			}
			res.Successful++
		}

		if len(entries) > 0 && res.Successful == 0 {
			return errReplaceAborted
		}
		return nil
	})

	res.Duration = s.now().Sub(started)
	if errors.Is(err, errReplaceAborted) {
		res.RolledBack = true
		res.Successful = 0
		return res, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return res, nil
}

func toModel(assetType models.AssetType, e Entry, refreshed time.Time) (*models.TickerCacheEntry, error) {
	symbol := strings.ToUpper(strings.TrimSpace(e.Symbol))
	name := strings.TrimSpace(e.Name)
	if symbol == "" || name == "" {
		return nil, errors.New("symbol and name are required")
	}

	row := &models.TickerCacheEntry{
		AssetType:   assetType,
		Symbol:      symbol,
		Name:        name,
		City:        strings.TrimSpace(e.City),
		Category:    strings.TrimSpace(e.Category),
		DataSource:  e.DataSource,
		LastUpdated: refreshed,
	}
	if len(e.Extra) > 0 {
		raw, err := json.Marshal(e.Extra)
		if err != nil {
			return nil, err
		}
		row.ExtraData = datatypes.JSON(raw)
	}
	return row, nil
}

// CountByType returns the number of entries per asset type.
func (s *Store) CountByType(ctx context.Context) (map[models.AssetType]int64, error) {
	type countRow struct {
		AssetType models.AssetType
		Count     int64
	}
	var rows []countRow
	if err := s.db.WithContext(ctx).Model(&models.TickerCacheEntry{}).
		Select("asset_type, COUNT(*) AS count").
		Group("asset_type").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	counts := make(map[models.AssetType]int64, len(rows))
	for _, r := range rows {
		counts[r.AssetType] = r.Count
	}
	return counts, nil
}
