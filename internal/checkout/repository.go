package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
)

// Repository persists checkout sessions. Writes are last-write-wins; the
// version counter only surfaces lost updates, it does not prevent them.
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

// Create inserts the session row.
func (r *Repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByID loads a session by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Save writes the full session row back.
func (r *Repository) Save(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// MarkCompleted flips an active session to completed. It reports false when
// the session was not active anymore, which callers treat as losing the
// one-booking-per-session guarantee to a concurrent confirm.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", id, enums.SessionStatusActive).
		Updates(map[string]any{
			"status":  enums.SessionStatusCompleted,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkExpired flips an active session to expired. Reports whether this call
// performed the transition.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", id, enums.SessionStatusActive).
		Updates(map[string]any{
			"status":  enums.SessionStatusExpired,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListStaleActive returns active sessions whose TTL elapsed before cutoff.
// Used by the sweep job; lazy reads expire sessions independently.
func (r *Repository) ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.SessionStatusActive, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
