// Package audit records who changed what in the repair workflow. Writes are
// asynchronous so a slow or broken audit table never blocks a request.
package audit

import (
	"fmt"

	"github.com/mrlokans/repairhub/internal/database/audit"
	"github.com/mrlokans/repairhub/internal/entities"
	"github.com/mrlokans/repairhub/internal/logger"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	go func() {
		if err := s.repo.LogEvent(event); err != nil {
			logger.Get().Error().Err(err).Str("action", event.Action).Msg("Failed to log audit event")
		}
	}()
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action, ipAddr string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogRepairCreate records the creation of a repair request.
func (s *Service) LogRepairCreate(userID, requestID uint, description string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventRepairCreate,
		Action:      "repair_create",
		Description: truncate(description, 200),
		EntityID:    &requestID,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogRepairDelete records the deletion of a repair request.
func (s *Service) LogRepairDelete(userID, requestID uint) {
	s.LogAsync(&entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventRepairDelete,
		Action:    "repair_delete",
		EntityID:  &requestID,
		Status:    entities.AuditStatusSuccess,
	})
}

// LogStatusChange records an admin transitioning a repair request between
// statuses.
func (s *Service) LogStatusChange(adminID, requestID uint, from, to entities.RepairStatus, err error) {
	event := &entities.AuditEvent{
		UserID:      adminID,
		EventType:   entities.AuditEventStatusChange,
		Action:      "status_change",
		Description: fmt.Sprintf("%s -> %s", from, to),
		EntityID:    &requestID,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
