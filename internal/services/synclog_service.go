package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
)

// Bounds for sync history listings.
const (
	DefaultSyncLogLimit = 10
	MaxSyncLogLimit     = 50
)

// syncLogService stores sync_logs rows.
type syncLogService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSyncLogService creates a new SyncLogServicer. A nil clock uses time.Now.
func NewSyncLogService(db *gorm.DB, clock func() time.Time) SyncLogServicer {
	if clock == nil {
		clock = time.Now
	}
	return &syncLogService{db: db, now: clock}
}

// Start inserts entry as a running sync.
func (s *syncLogService) Start(ctx context.Context, entry *models.SyncLog) error {
	entry.Status = models.SyncStatusRunning
	entry.StartedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Finish stamps the completion time and duration and saves entry.
func (s *syncLogService) Finish(ctx context.Context, entry *models.SyncLog) error {
	completed := s.now().UTC()
	entry.CompletedAt = &completed
	entry.DurationMs = completed.Sub(entry.StartedAt).Milliseconds()
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// LastCompleted returns the latest fully completed run of a sync type, or nil.
func (s *syncLogService) LastCompleted(ctx context.Context, kind models.SyncKind, syncType string) (*models.SyncLog, error) {
	var entry models.SyncLog
	err := s.db.WithContext(ctx).
		Where("kind = ? AND sync_type = ? AND status = ?", kind, syncType, models.SyncStatusCompleted).
		Order("started_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &entry, nil
}

// Recent returns the newest runs of a kind.
func (s *syncLogService) Recent(ctx context.Context, kind models.SyncKind, limit int) ([]models.SyncLog, error) {
	return s.recent(s.db.WithContext(ctx).Where("kind = ?", kind), limit)
}

// RecentForUser returns the newest runs of a kind started by userID or by a
// scheduler on behalf of every user.
func (s *syncLogService) RecentForUser(ctx context.Context, kind models.SyncKind, userID string, limit int) ([]models.SyncLog, error) {
	query := s.db.WithContext(ctx).
		Where("kind = ?", kind).
		Where("user_id = ? OR user_id IS NULL", userID)
	return s.recent(query, limit)
}

func (s *syncLogService) recent(query *gorm.DB, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = DefaultSyncLogLimit
	}
	if limit > MaxSyncLogLimit {
		limit = MaxSyncLogLimit
	}

	var logs []models.SyncLog
	if err := query.Order("started_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return logs, nil
}
