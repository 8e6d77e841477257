package models

import (
	"time"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/uuid"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncKind separates price runs from ticker directory runs.
type SyncKind string

const (
	SyncKindPrice  SyncKind = "price"
	SyncKindTicker SyncKind = "ticker"
)

// SyncStatus is the lifecycle state of a sync run.
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusPartial   SyncStatus = "partial"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusSkipped   SyncStatus = "skipped"
)

// Trigger sources.
const (
	TriggerManual = "manual"
	TriggerCron   = "cron"
	TriggerAPI    = "api"
)

// SyncLog is the audit row of one price or ticker sync run.
// Rows are append-only history, so there is no soft delete.
type SyncLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Kind         SyncKind       `gorm:"type:varchar(10);not null;index:idx_sync_logs_kind_type" json:"kind"`
	SyncType     string         `gorm:"type:varchar(20);not null;index:idx_sync_logs_kind_type" json:"sync_type"`
	TriggeredBy  string         `gorm:"type:varchar(10);not null" json:"triggered_by"`
	UserID       *string        `gorm:"type:uuid" json:"user_id,omitempty"`
	Status       SyncStatus     `gorm:"type:varchar(10);not null" json:"status"`
	TotalRecords int            `json:"total_records"`
	Successful   int            `json:"successful"`
	Failed       int            `json:"failed"`
	Skipped      int            `json:"skipped"`
	StartedAt    time.Time      `gorm:"not null;index" json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorDetails datatypes.JSON `json:"error_details,omitempty"`
	SyncConfig   datatypes.JSON `json:"sync_config,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (l *SyncLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New()
	}
	return nil
}
