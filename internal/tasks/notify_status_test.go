package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	telegramstore "github.com/mrlokans/repairhub/internal/database/telegram"
	"github.com/mrlokans/repairhub/internal/entities"
)

type recordingSender struct {
	chatID string
	text   string
	calls  int
	err    error
}

func (s *recordingSender) SendMessage(_ context.Context, chatID, text string) error {
	s.calls++
	s.chatID = chatID
	s.text = text
	return s.err
}

func setupLinks(t *testing.T) (*telegramstore.Repository, uint) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.TelegramLink{}))

	user := entities.User{Username: "alice", Email: "alice@ex.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	return telegramstore.NewRepository(db), user.ID
}

func TestStatusNotification_SendsToLinkedChat(t *testing.T) {
	links, userID := setupLinks(t)

	link, err := links.GeneratePairingCode(userID)
	require.NoError(t, err)
	_, err = links.Redeem(link.Code, "4242")
	require.NoError(t, err)

	sender := &recordingSender{}
	process := StatusNotificationProcessor(links, sender)

	err = process(context.Background(), StatusNotificationTask{
		UserID:    userID,
		RequestID: 7,
		Status:    entities.RepairStatusDone,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "4242", sender.chatID)
	assert.Contains(t, sender.text, "#7")
	assert.Contains(t, sender.text, "ready for pickup")
}

func TestStatusNotification_SkipsUnlinkedUser(t *testing.T) {
	links, userID := setupLinks(t)

	sender := &recordingSender{}
	process := StatusNotificationProcessor(links, sender)

	err := process(context.Background(), StatusNotificationTask{
		UserID:    userID,
		RequestID: 7,
		Status:    entities.RepairStatusInProgress,
	})

	// No linked chat is not a failure; retrying would never help.
	require.NoError(t, err)
	assert.Equal(t, 0, sender.calls)
}

func TestStatusNotification_PropagatesSendFailure(t *testing.T) {
	links, userID := setupLinks(t)

	link, err := links.GeneratePairingCode(userID)
	require.NoError(t, err)
	_, err = links.Redeem(link.Code, "4242")
	require.NoError(t, err)

	sender := &recordingSender{err: errors.New("network down")}
	process := StatusNotificationProcessor(links, sender)

	err = process(context.Background(), StatusNotificationTask{
		UserID:    userID,
		RequestID: 7,
		Status:    entities.RepairStatusDone,
	})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "network down"))
}

func TestStatusNotification_UnknownStatusWording(t *testing.T) {
	links, userID := setupLinks(t)

	link, err := links.GeneratePairingCode(userID)
	require.NoError(t, err)
	_, err = links.Redeem(link.Code, "4242")
	require.NoError(t, err)

	sender := &recordingSender{}
	process := StatusNotificationProcessor(links, sender)

	err = process(context.Background(), StatusNotificationTask{
		UserID:    userID,
		RequestID: 9,
		Status:    entities.RepairStatus("archived"),
	})
	require.NoError(t, err)
	assert.Contains(t, sender.text, "archived")
}
