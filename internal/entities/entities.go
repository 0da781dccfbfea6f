// Package entities contains the database models shared across the application.
package entities

import (
	"time"

	"gorm.io/gorm"
)

// RepairStatus describes the lifecycle of a repair request.
type RepairStatus string

const (
	RepairStatusNew        RepairStatus = "new"
	RepairStatusInProgress RepairStatus = "in_progress"
	RepairStatusDone       RepairStatus = "done"
	RepairStatusRejected   RepairStatus = "rejected"
)

// ValidRepairStatus reports whether s is one of the known statuses.
func ValidRepairStatus(s RepairStatus) bool {
	switch s {
	case RepairStatusNew, RepairStatusInProgress, RepairStatusDone, RepairStatusRejected:
		return true
	}
	return false
}

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:100" json:"username"`
	Email        string         `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"` // bcrypt hash, hidden from JSON
	IsAdmin      bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type RepairRequest struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       uint         `gorm:"index" json:"user_id"`
	Description  string       `gorm:"type:text" json:"description"`
	PhotoURL     string       `gorm:"size:1024" json:"photo_url,omitempty"`
	RequiredTime *time.Time   `json:"required_time,omitempty"` // When the user needs the repair done
	Status       RepairStatus `gorm:"size:20;default:'new'" json:"status"`
	User         User         `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TelegramLink pairs a site account with a Telegram chat. The pairing code is
// generated on the site and consumed at most once when the user sends it to
// the bot. An account has at most one link.
type TelegramLink struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"uniqueIndex" json:"user_id"`
	Code      string     `gorm:"uniqueIndex;size:64" json:"-"`
	ChatID    string     `gorm:"size:64" json:"-"` // Empty until the code is redeemed
	BoundAt   *time.Time `json:"bound_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Bound reports whether the pairing code has been redeemed.
func (l *TelegramLink) Bound() bool {
	return l.ChatID != ""
}
