// Package repairs provides database operations for repair requests.
package repairs

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/repairhub/internal/entities"
)

// ErrNotFound is returned when no repair request matches the lookup.
var ErrNotFound = errors.New("repair request not found")

// Repository handles all repair request database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repairs repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new repair request. Status defaults to "new" when unset.
func (r *Repository) Create(req *entities.RepairRequest) error {
	if req.Status == "" {
		req.Status = entities.RepairStatusNew
	}
	if err := r.db.Create(req).Error; err != nil {
		return fmt.Errorf("failed to create repair request: %w", err)
	}
	return nil
}

// GetByID retrieves a repair request by ID regardless of owner.
func (r *Repository) GetByID(id uint) (*entities.RepairRequest, error) {
	var req entities.RepairRequest
	err := r.db.First(&req, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// GetByIDForUser retrieves a repair request by ID scoped to its owner.
// Requests belonging to other users are indistinguishable from missing ones.
func (r *Repository) GetByIDForUser(id, userID uint) (*entities.RepairRequest, error) {
	var req entities.RepairRequest
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// ListByUser returns all repair requests owned by the user, newest first.
func (r *Repository) ListByUser(userID uint) ([]entities.RepairRequest, error) {
	var reqs []entities.RepairRequest
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

// ListAll returns every repair request with its owner preloaded, newest first.
// Used by the admin panel.
func (r *Repository) ListAll() ([]entities.RepairRequest, error) {
	var reqs []entities.RepairRequest
	err := r.db.Preload("User").Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

// Save persists modifications to an existing repair request.
func (r *Repository) Save(req *entities.RepairRequest) error {
	return r.db.Save(req).Error
}

// UpdateStatus transitions a repair request to the given status and returns
// the updated row.
func (r *Repository) UpdateStatus(id uint, status entities.RepairStatus) (*entities.RepairRequest, error) {
	req, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := r.db.Model(req).Update("status", status).Error; err != nil {
		return nil, err
	}
	req.Status = status
	return req, nil
}

// Delete removes a repair request scoped to its owner.
func (r *Repository) Delete(id, userID uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&entities.RepairRequest{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
