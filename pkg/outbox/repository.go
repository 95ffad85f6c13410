package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

func (r *Repository) FetchPending(limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.Where("status = ?", enums.OutboxStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(id uuid.UUID) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.OutboxStatusPublished,
			"published_at": time.Now(),
		}).Error
}

// MarkFailed records one failed publish attempt. Rows exhausting maxAttempts
// move to dead_letter and are skipped by FetchPending.
func (r *Repository) MarkFailed(id uuid.UUID, maxAttempts int, cause error) error {
	updates := map[string]any{
		"last_error":    cause.Error(),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	}
	if err := r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return err
	}
	if maxAttempts <= 0 {
		return nil
	}
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ? AND attempt_count >= ?", id, maxAttempts).
		Update("status", enums.OutboxStatusDeadLetter).Error
}

// MarkDeadLetter parks a row that can never be published, such as one with
// an undecodable payload. Dead-lettered rows are skipped by FetchPending.
func (r *Repository) MarkDeadLetter(id uuid.UUID, cause error) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.OutboxStatusDeadLetter,
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeletePublishedBefore prunes published rows older than the cutoff, along
// with dead-lettered rows past the cutoff that already burned at least
// minAttemptCount publish attempts.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	res := db.WithContext(ctx).
		Where("status = ? AND published_at < ?", enums.OutboxStatusPublished, cutoff).
		Or("status = ? AND created_at < ? AND attempt_count >= ?", enums.OutboxStatusDeadLetter, cutoff, minAttemptCount).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}
