package models

import "gorm.io/datatypes"

// Audit actors.
const (
	ActorUser     = "user"
	ActorPipeline = "pipeline"
)

// AuditLog records state-changing calls such as manual prices and sync runs.
// Pipeline calls carry no user.
type AuditLog struct {
	Base
	UserID       *string        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Actor        string         `gorm:"size:20;not null;default:'user'" json:"actor"`
	Action       string         `gorm:"not null" json:"action"`
	ResourceType string         `gorm:"not null" json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	IPAddress    string         `json:"ip_address"`
	Changes      datatypes.JSON `json:"changes,omitempty"`
}
