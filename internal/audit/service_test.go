package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditRepo "github.com/mrlokans/repairhub/internal/database/audit"
	"github.com/mrlokans/repairhub/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return NewService(auditRepo.NewRepository(db)), db
}

// waitForEvents polls for asynchronously written events.
func waitForEvents(t *testing.T, db *gorm.DB, want int64) []entities.AuditEvent {
	t.Helper()
	require.Eventually(t, func() bool {
		var count int64
		return db.Model(&entities.AuditEvent{}).Count(&count).Error == nil && count == want
	}, time.Second, 10*time.Millisecond)

	var events []entities.AuditEvent
	require.NoError(t, db.Order("id").Find(&events).Error)
	return events
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventAuth,
		Action:    "login",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, svc.Log(event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "login", saved.Action)
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(3, "login", "10.0.0.1", true)
	svc.LogAuth(3, "login", "10.0.0.2", false)

	events := waitForEvents(t, db, 2)
	for _, e := range events {
		assert.Equal(t, entities.AuditEventAuth, e.EventType)
		assert.Equal(t, uint(3), e.UserID)
	}

	statuses := []entities.AuditStatus{events[0].Status, events[1].Status}
	assert.Contains(t, statuses, entities.AuditStatusSuccess)
	assert.Contains(t, statuses, entities.AuditStatusFailed)
}

func TestService_LogStatusChange(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogStatusChange(1, 42, entities.RepairStatusNew, entities.RepairStatusDone, nil)

	events := waitForEvents(t, db, 1)
	e := events[0]
	assert.Equal(t, entities.AuditEventStatusChange, e.EventType)
	assert.Equal(t, "new -> done", e.Description)
	require.NotNil(t, e.EntityID)
	assert.Equal(t, uint(42), *e.EntityID)
	assert.Equal(t, entities.AuditStatusSuccess, e.Status)
}

func TestService_LogStatusChange_Failed(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogStatusChange(1, 42, entities.RepairStatusNew, entities.RepairStatusDone, errors.New("db locked"))

	events := waitForEvents(t, db, 1)
	assert.Equal(t, entities.AuditStatusFailed, events[0].Status)
	assert.Equal(t, "db locked", events[0].ErrorMsg)
}

func TestService_LogRepairLifecycle(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogRepairCreate(5, 9, "Leaking pipe under the sink")
	svc.LogRepairDelete(5, 9)

	events := waitForEvents(t, db, 2)
	types := []entities.AuditEventType{events[0].EventType, events[1].EventType}
	assert.Contains(t, types, entities.AuditEventRepairCreate)
	assert.Contains(t, types, entities.AuditEventRepairDelete)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcd", 2))
}
