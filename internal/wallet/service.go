package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
)

type balanceLoader interface {
	FindBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	FindPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// Service exposes spendable balances and promo validation for checkout.
type Service interface {
	Balances(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	ValidatePromo(ctx context.Context, code string, now time.Time) (*models.PromoCode, error)
}

type service struct {
	repo balanceLoader
}

// NewService builds the wallet service.
func NewService(repo balanceLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Balances(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	balance, err := s.repo.FindBalance(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading balances")
	}
	return balance, nil
}

// ValidatePromo resolves a promo code to its discount. Unknown, disabled,
// and expired codes all fail the same way.
func (s *service) ValidatePromo(ctx context.Context, code string, now time.Time) (*models.PromoCode, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	promo, err := s.repo.FindPromoByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not valid")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading promo code")
	}
	if !promo.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not valid")
	}
	if promo.ExpiresAt != nil && !now.Before(*promo.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not valid")
	}
	return promo, nil
}
