package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	telegramstore "github.com/mrlokans/repairhub/internal/database/telegram"
	"github.com/mrlokans/repairhub/internal/entities"
	"github.com/mrlokans/repairhub/internal/logger"
)

// statusMessages are the user-facing wordings per repair status.
var statusMessages = map[entities.RepairStatus]string{
	entities.RepairStatusNew:        "was registered",
	entities.RepairStatusInProgress: "is now being worked on",
	entities.RepairStatusDone:       "is done and ready for pickup",
	entities.RepairStatusRejected:   "was rejected",
}

// MessageSender delivers a text message to a chat. Satisfied by the Telegram
// bot client.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// StatusNotificationTask notifies a user about a repair status change
// through their linked chat.
type StatusNotificationTask struct {
	UserID    uint                  `json:"user_id"`
	RequestID uint                  `json:"request_id"`
	Status    entities.RepairStatus `json:"status"`
}

// Config returns the queue configuration for status notifications.
func (t StatusNotificationTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "notify_status",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// StatusNotificationProcessor creates the processor for status notification
// tasks. Users without a linked chat are skipped without retrying.
func StatusNotificationProcessor(links *telegramstore.Repository, sender MessageSender) backlite.QueueProcessor[StatusNotificationTask] {
	return func(ctx context.Context, task StatusNotificationTask) error {
		chatID, err := links.ChatIDForUser(task.UserID)
		if err != nil {
			if errors.Is(err, telegramstore.ErrNotLinked) {
				logger.Get().Debug().
					Uint("user_id", task.UserID).
					Uint("request_id", task.RequestID).
					Msg("No linked chat, skipping notification")
				return nil
			}
			return fmt.Errorf("resolve chat for user %d: %w", task.UserID, err)
		}

		wording, ok := statusMessages[task.Status]
		if !ok {
			wording = fmt.Sprintf("changed status to %s", task.Status)
		}
		text := fmt.Sprintf("Your repair request #%d %s.", task.RequestID, wording)

		if err := sender.SendMessage(ctx, chatID, text); err != nil {
			return fmt.Errorf("notify user %d about request %d: %w", task.UserID, task.RequestID, err)
		}

		logger.Get().Info().
			Uint("user_id", task.UserID).
			Uint("request_id", task.RequestID).
			Str("status", string(task.Status)).
			Msg("Status notification sent")
		return nil
	}
}

// NewStatusNotificationQueue creates the backlite queue for status
// notifications.
func NewStatusNotificationQueue(links *telegramstore.Repository, sender MessageSender) backlite.Queue {
	return backlite.NewQueue(StatusNotificationProcessor(links, sender))
}

// NotifyStatusChange enqueues a status notification for a repair request.
func (c *Client) NotifyStatusChange(userID, requestID uint, status entities.RepairStatus) error {
	_, err := c.Add(StatusNotificationTask{
		UserID:    userID,
		RequestID: requestID,
		Status:    status,
	}).Save()
	return err
}
