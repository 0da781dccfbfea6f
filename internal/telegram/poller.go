package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	telegramstore "github.com/mrlokans/repairhub/internal/database/telegram"
	"github.com/mrlokans/repairhub/internal/logger"
)

const (
	startReply = "Hi! I notify you when the status of your repair requests changes.\n" +
		"Generate a pairing code in the web app and send it to me to link this chat."
	pairedReply      = "Chat linked. You will now receive repair status updates here."
	unknownCodeReply = "That code is unknown or already used. Generate a fresh one in the web app and try again."
)

// Poller runs the pairing bot: it long-polls the Bot API and binds pairing
// codes sent to the bot to the chat they came from.
type Poller struct {
	client      *Client
	links       *telegramstore.Repository
	pollTimeout time.Duration
}

// NewPoller creates a poller using the given Bot API client and link store.
func NewPoller(client *Client, links *telegramstore.Repository, pollTimeout time.Duration) *Poller {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Poller{
		client:      client,
		links:       links,
		pollTimeout: pollTimeout,
	}
}

// Run polls for updates until the context is cancelled. Transient API errors
// are logged and retried with a short backoff.
func (p *Poller) Run(ctx context.Context) {
	log := logger.Get()
	log.Info().Dur("poll_timeout", p.pollTimeout).Msg("Telegram poller started")

	var offset int64
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Telegram poller stopped")
				return
			}
			log.Error().Err(err).Msg("getUpdates failed, backing off")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				log.Info().Msg("Telegram poller stopped")
				return
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			p.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate processes one incoming update. "/start" gets the pairing
// prompt; any other text is treated as a pairing code attempt.
func (p *Poller) handleUpdate(ctx context.Context, update Update) {
	if update.Message == nil {
		return
	}

	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	text := strings.TrimSpace(update.Message.Text)
	log := logger.Get()

	var reply string
	switch {
	case text == "" || strings.HasPrefix(text, "/start"):
		reply = startReply
	default:
		_, err := p.links.Redeem(text, chatID)
		switch {
		case err == nil:
			log.Info().Str("chat_id", chatID).Msg("Pairing code redeemed")
			reply = pairedReply
		case errors.Is(err, telegramstore.ErrCodeNotFound):
			reply = unknownCodeReply
		default:
			log.Error().Err(err).Str("chat_id", chatID).Msg("Pairing code redemption failed")
			reply = "Something went wrong. Please try again."
		}
	}

	if err := p.client.SendMessage(ctx, chatID, reply); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to send bot reply")
	}
}
