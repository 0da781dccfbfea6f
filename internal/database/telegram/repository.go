// Package telegram provides database operations for bot pairing codes.
//
// A pairing code is generated on the site for a logged-in account and later
// redeemed through the bot. Redeeming binds the code to a chat; a bound code
// can never be redeemed again.
package telegram

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/repairhub/internal/entities"
)

var (
	// ErrCodeNotFound is returned when no unbound link matches the code.
	ErrCodeNotFound = errors.New("pairing code not found")
	// ErrAlreadyBound is returned when the matching code was already redeemed.
	ErrAlreadyBound = errors.New("pairing code already redeemed")
	// ErrNotLinked is returned when an account has no telegram link.
	ErrNotLinked = errors.New("account has no telegram link")
)

// Repository handles all telegram link database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new telegram links repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GeneratePairingCode creates a fresh pairing code for the user. An existing
// unbound link is replaced; an already-bound link is kept as is and returned
// with ErrAlreadyBound so the caller can tell the user.
func (r *Repository) GeneratePairingCode(userID uint) (*entities.TelegramLink, error) {
	var existing entities.TelegramLink
	err := r.db.Where("user_id = ?", userID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Bound() {
			return &existing, ErrAlreadyBound
		}
		existing.Code = newCode()
		existing.CreatedAt = time.Now()
		if err := r.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to refresh pairing code: %w", err)
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		link := &entities.TelegramLink{UserID: userID, Code: newCode()}
		if err := r.db.Create(link).Error; err != nil {
			return nil, fmt.Errorf("failed to create pairing code: %w", err)
		}
		return link, nil
	default:
		return nil, err
	}
}

// Redeem binds a pairing code to a chat. The code is consumed: a second
// redemption of the same code fails with ErrAlreadyBound, an unknown code
// with ErrCodeNotFound.
func (r *Repository) Redeem(code, chatID string) (*entities.TelegramLink, error) {
	var link entities.TelegramLink
	err := r.db.Where("code = ?", code).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if link.Bound() {
		return nil, ErrAlreadyBound
	}

	now := time.Now()
	result := r.db.Model(&entities.TelegramLink{}).
		Where("id = ? AND (chat_id = '' OR chat_id IS NULL)", link.ID).
		Updates(map[string]any{"chat_id": chatID, "bound_at": now})
	if result.Error != nil {
		return nil, result.Error
	}
	// Another redemption raced us to the same code
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyBound
	}

	link.ChatID = chatID
	link.BoundAt = &now
	return &link, nil
}

// GetByUserID returns the link for an account, bound or not.
func (r *Repository) GetByUserID(userID uint) (*entities.TelegramLink, error) {
	var link entities.TelegramLink
	err := r.db.Where("user_id = ?", userID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotLinked
		}
		return nil, err
	}
	return &link, nil
}

// ChatIDForUser returns the bound chat for an account, or ErrNotLinked when
// the account has no redeemed pairing code.
func (r *Repository) ChatIDForUser(userID uint) (string, error) {
	link, err := r.GetByUserID(userID)
	if err != nil {
		return "", err
	}
	if !link.Bound() {
		return "", ErrNotLinked
	}
	return link.ChatID, nil
}

// DeleteStaleCodes removes unbound links older than the retention window.
// Returns the number of deleted rows.
func (r *Repository) DeleteStaleCodes(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := r.db.
		Where("(chat_id = '' OR chat_id IS NULL) AND created_at < ?", cutoff).
		Delete(&entities.TelegramLink{})
	return result.RowsAffected, result.Error
}

func newCode() string {
	return uuid.NewString()
}
