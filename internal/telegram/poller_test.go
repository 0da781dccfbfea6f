package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	telegramstore "github.com/mrlokans/repairhub/internal/database/telegram"
	"github.com/mrlokans/repairhub/internal/entities"
)

// fakeBotAPI records sendMessage calls and serves no pending updates.
type fakeBotAPI struct {
	mu   sync.Mutex
	sent []map[string]any
}

func (f *fakeBotAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/bottest/sendMessage":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.sent = append(f.sent, body)
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		}
	}
}

func (f *fakeBotAPI) lastMessage(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message was sent")
	}
	return f.sent[len(f.sent)-1]
}

func setupPoller(t *testing.T) (*Poller, *fakeBotAPI, *telegramstore.Repository, uint) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&entities.User{}, &entities.TelegramLink{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	user := entities.User{Username: "bob", Email: "bob@ex.com", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	api := &fakeBotAPI{}
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	links := telegramstore.NewRepository(db)
	client := NewClient("test").WithAPIBase(server.URL)
	return NewPoller(client, links, time.Second), api, links, user.ID
}

func TestHandleUpdate_Start(t *testing.T) {
	poller, api, _, _ := setupPoller(t)

	poller.handleUpdate(context.Background(), Update{
		UpdateID: 1,
		Message:  &Message{Text: "/start", Chat: Chat{ID: 42}},
	})

	msg := api.lastMessage(t)
	if msg["chat_id"] != "42" {
		t.Errorf("chat_id = %v, want 42", msg["chat_id"])
	}
	if text, _ := msg["text"].(string); text != startReply {
		t.Errorf("unexpected reply: %q", text)
	}
}

func TestHandleUpdate_RedeemsCode(t *testing.T) {
	poller, api, links, userID := setupPoller(t)

	link, err := links.GeneratePairingCode(userID)
	if err != nil {
		t.Fatalf("GeneratePairingCode failed: %v", err)
	}

	poller.handleUpdate(context.Background(), Update{
		UpdateID: 1,
		Message:  &Message{Text: "  " + link.Code + "  ", Chat: Chat{ID: 42}},
	})

	if text, _ := api.lastMessage(t)["text"].(string); text != pairedReply {
		t.Errorf("unexpected reply: %q", text)
	}

	chatID, err := links.ChatIDForUser(userID)
	if err != nil {
		t.Fatalf("ChatIDForUser failed: %v", err)
	}
	if chatID != "42" {
		t.Errorf("bound chat = %q, want 42", chatID)
	}
}

func TestHandleUpdate_UnknownCode(t *testing.T) {
	poller, api, _, _ := setupPoller(t)

	poller.handleUpdate(context.Background(), Update{
		UpdateID: 1,
		Message:  &Message{Text: "no-such-code", Chat: Chat{ID: 42}},
	})

	if text, _ := api.lastMessage(t)["text"].(string); text != unknownCodeReply {
		t.Errorf("unexpected reply: %q", text)
	}
}

func TestHandleUpdate_IgnoresNonMessages(t *testing.T) {
	poller, api, _, _ := setupPoller(t)

	poller.handleUpdate(context.Background(), Update{UpdateID: 1})

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sent) != 0 {
		t.Error("non-message update must not trigger a reply")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	poller, _, _, _ := setupPoller(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
}
