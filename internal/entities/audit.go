package entities

import "time"

// AuditEventType categorizes audit trail entries.
type AuditEventType string

const (
	AuditEventAuth         AuditEventType = "auth"
	AuditEventRepairCreate AuditEventType = "repair_create"
	AuditEventRepairDelete AuditEventType = "repair_delete"
	AuditEventStatusChange AuditEventType = "status_change"
)

// AuditStatus is the outcome of an audited action.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuditEvent is one entry of the audit trail: who did what to which repair
// request, and how it went.
type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	EventType   AuditEventType `gorm:"size:50;index" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`
	Description string         `gorm:"type:text" json:"description"`
	EntityID    *uint          `json:"entity_id,omitempty"` // Repair request ID when applicable
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}
