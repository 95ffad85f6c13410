package vehicles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
)

// Repository exposes persistence for vehicle listings.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the vehicle regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := r.db.WithContext(ctx).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListActiveByCity returns active listings in a city ordered by rate.
func (r *Repository) ListActiveByCity(ctx context.Context, city string, limit int) ([]models.Vehicle, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Vehicle
	err := r.db.WithContext(ctx).
		Where("is_active AND lower(city) = lower(?)", city).
		Order("daily_rate_cents ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListByHost returns every listing owned by the host.
func (r *Repository) ListByHost(ctx context.Context, hostID uuid.UUID) ([]models.Vehicle, error) {
	var rows []models.Vehicle
	err := r.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
