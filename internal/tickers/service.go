package tickers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
)

// SyncType selects which categories a ticker sync refreshes.
type SyncType string

const (
	SyncTypeBIST  SyncType = "BIST"
	SyncTypeTEFAS SyncType = "TEFAS"
	SyncTypeFull  SyncType = "FULL"
)

// ParseSyncType parses s case-insensitively.
func ParseSyncType(s string) (SyncType, bool) {
	switch t := SyncType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SyncTypeBIST, SyncTypeTEFAS, SyncTypeFull:
		return t, true
	}
	return "", false
}

// AssetTypes returns the asset types refreshed by t, in sync order.
func (t SyncType) AssetTypes() []models.AssetType {
	switch t {
	case SyncTypeBIST:
		return []models.AssetType{models.AssetTypeStock}
	case SyncTypeTEFAS:
		return []models.AssetType{models.AssetTypeFund}
	case SyncTypeFull:
		return []models.AssetType{models.AssetTypeStock, models.AssetTypeFund}
	}
	return nil
}

// logSyncType is the sync_type recorded for one category refresh.
func logSyncType(t models.AssetType) string {
	switch t {
	case models.AssetTypeStock:
		return string(SyncTypeBIST)
	case models.AssetTypeFund:
		return string(SyncTypeTEFAS)
	}
	return string(t)
}

// LogRecorder persists sync log rows.
type LogRecorder interface {
	Start(ctx context.Context, entry *models.SyncLog) error
	Finish(ctx context.Context, entry *models.SyncLog) error
	LastCompleted(ctx context.Context, kind models.SyncKind, syncType string) (*models.SyncLog, error)
	Recent(ctx context.Context, kind models.SyncKind, limit int) ([]models.SyncLog, error)
}

// SyncRequest describes one ticker sync invocation.
type SyncRequest struct {
	Type        SyncType
	Force       bool
	TriggeredBy string
	UserID      *string
	Policy      ReplacePolicy
}

// CategoryResult is the outcome for one asset type.
type CategoryResult struct {
	Type         models.AssetType  `json:"type"`
	TotalRecords int               `json:"total_records"`
	Successful   int               `json:"successful"`
	Failed       int               `json:"failed"`
	DurationMs   int64             `json:"duration_ms"`
	Status       models.SyncStatus `json:"status"`
	Source       string            `json:"source,omitempty"`
	LogID        string            `json:"log_id,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// SyncReport is the outcome of Sync.
type SyncReport struct {
	SyncType SyncType         `json:"sync_type"`
	Results  []CategoryResult `json:"results"`
}

// Stats summarizes the ticker directory.
type Stats struct {
	Counts   map[models.AssetType]int64 `json:"counts"`
	Total    int64                      `json:"total"`
	LastSync *models.SyncLog            `json:"last_sync,omitempty"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Feeds map[models.AssetType]Feed
	// MinInterval suppresses unforced refreshes of a category that completed
	// a sync more recently than this. Zero disables the check.
	MinInterval time.Duration
	Clock       func() time.Time
}

// Service runs ticker directory syncs and searches.
type Service struct {
	store       *Store
	logs        LogRecorder
	feeds       map[models.AssetType]Feed
	minInterval time.Duration
	now         func() time.Time
}

// NewService creates a Service.
func NewService(store *Store, logs LogRecorder, cfg ServiceConfig) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:       store,
		logs:        logs,
		feeds:       cfg.Feeds,
		minInterval: cfg.MinInterval,
		now:         now,
	}
}

// Search delegates to the store.
func (s *Service) Search(ctx context.Context, query string, assetType models.AssetType, limit int) ([]models.TickerCacheEntry, error) {
	return s.store.Search(ctx, query, assetType, limit)
}

// Sync refreshes every category covered by req.Type. Category failures are
// reported in the result; only an invalid request returns an error.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncReport, error) {
	types := req.Type.AssetTypes()
	if len(types) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, fmt.Sprintf("unknown sync type %q", req.Type))
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = models.TriggerManual
	}
	if req.Policy == "" {
		req.Policy = PolicyBestEffort
	}

	report := &SyncReport{SyncType: req.Type, Results: make([]CategoryResult, 0, len(types))}
	for _, t := range types {
		report.Results = append(report.Results, s.syncCategory(ctx, t, req))
	}
	return report, nil
}

func (s *Service) syncCategory(ctx context.Context, assetType models.AssetType, req SyncRequest) CategoryResult {
	log := logger.Named("tickers")
	res := CategoryResult{Type: assetType}

	if !req.Force && s.minInterval > 0 && s.logs != nil {
		last, err := s.logs.LastCompleted(ctx, models.SyncKindTicker, logSyncType(assetType))
		if err != nil {
			log.Warnw("failed to read last ticker sync", "type", assetType, "error", err)
		} else if last != nil && s.now().Sub(last.StartedAt) < s.minInterval {
			res.Status = models.SyncStatusSkipped
			res.LogID = last.ID
			log.Infow("ticker sync skipped, category is fresh",
				"type", assetType,
				"last_sync", last.StartedAt,
			)
			return res
		}
	}

	feed, ok := s.feeds[assetType]
	if !ok {
		res.Status = models.SyncStatusFailed
		res.Error = fmt.Sprintf("no feed configured for %s", assetType)
		return res
	}
	res.Source = feed.Name()

	entry := s.startLog(ctx, assetType, req)
	if entry != nil {
		res.LogID = entry.ID
	}
	started := s.now()

	items, err := feed.List(ctx)
	if err == nil && len(items) == 0 {
		err = apperrors.WithMessage(apperrors.ErrPriceUnavailable, "feed returned no entries")
	}
	if err != nil {
		res.Status = models.SyncStatusFailed
		res.Error = err.Error()
		res.DurationMs = s.now().Sub(started).Milliseconds()
		log.Errorw("ticker feed failed", "type", assetType, "feed", feed.Name(), "error", err)
		s.finishLog(ctx, entry, res, nil)
		return res
	}

	replaced, err := s.store.ReplaceCategory(ctx, assetType, items, req.Policy)
	if err != nil {
		res.TotalRecords = len(items)
		res.Status = models.SyncStatusFailed
		res.Error = err.Error()
		res.DurationMs = s.now().Sub(started).Milliseconds()
		log.Errorw("ticker replace failed", "type", assetType, "error", err)
		s.finishLog(ctx, entry, res, nil)
		return res
	}

	res.TotalRecords = replaced.Total
	res.Successful = replaced.Successful
	res.Failed = replaced.Failed
	res.DurationMs = s.now().Sub(started).Milliseconds()
	switch {
	case replaced.RolledBack:
		res.Status = models.SyncStatusFailed
		res.Error = "replace rolled back, previous entries kept"
	case replaced.Failed > 0:
		res.Status = models.SyncStatusPartial
	default:
		res.Status = models.SyncStatusCompleted
	}

	log.Infow("ticker sync finished",
		"type", assetType,
		"log_id", res.LogID,
		"source", res.Source,
		"status", res.Status,
		"total", res.TotalRecords,
		"successful", res.Successful,
		"failed", res.Failed,
		"duration_ms", res.DurationMs,
	)
	s.finishLog(ctx, entry, res, replaced.Errors)
	return res
}

func (s *Service) startLog(ctx context.Context, assetType models.AssetType, req SyncRequest) *models.SyncLog {
	if s.logs == nil {
		return nil
	}
	cfg, _ := json.Marshal(map[string]any{
		"sync_type": req.Type,
		"force":     req.Force,
		"policy":    req.Policy,
	})
	entry := &models.SyncLog{
		Kind:        models.SyncKindTicker,
		SyncType:    logSyncType(assetType),
		TriggeredBy: req.TriggeredBy,
		UserID:      req.UserID,
		SyncConfig:  cfg,
	}
	if err := s.logs.Start(ctx, entry); err != nil {
		logger.Named("tickers").Warnw("failed to record ticker sync start", "type", assetType, "error", err)
		return nil
	}
	return entry
}

func (s *Service) finishLog(ctx context.Context, entry *models.SyncLog, res CategoryResult, rowErrors []string) {
	if entry == nil {
		return
	}
	entry.Status = res.Status
	entry.TotalRecords = res.TotalRecords
	entry.Successful = res.Successful
	entry.Failed = res.Failed
	entry.ErrorMessage = res.Error
	if len(rowErrors) > 0 {
		if raw, err := json.Marshal(rowErrors); err == nil {
			entry.ErrorDetails = raw
		}
	}
	if err := s.logs.Finish(ctx, entry); err != nil {
		logger.Named("tickers").Warnw("failed to record ticker sync result", "log_id", entry.ID, "error", err)
	}
}

// Stats returns per-category counts and the most recent ticker sync.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountByType(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Counts: counts}
	for _, n := range counts {
		stats.Total += n
	}
	if s.logs != nil {
		recent, err := s.logs.Recent(ctx, models.SyncKindTicker, 1)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			stats.LastSync = &recent[0]
		}
	}
	return stats, nil
}
