package wallet

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
)

// Repository exposes persistence for guest balances and promo codes.
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

// FindBalance loads the user's balance row. Users with no row have zero
// balances.
func (r *Repository) FindBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	err := r.db.WithContext(ctx).First(&balance, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UserBalance{UserID: userID}, nil
		}
		return nil, err
	}
	return &balance, nil
}

// FindPromoByCode does a case-insensitive lookup of a promo code.
func (r *Repository) FindPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.WithContext(ctx).
		First(&promo, "lower(code) = lower(?)", strings.TrimSpace(code)).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}
