package vehicles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
)

type vehicleLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListActiveByCity(ctx context.Context, city string, limit int) ([]models.Vehicle, error)
}

// Service exposes vehicle read paths used by checkout and listings.
type Service interface {
	GetBookable(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListActiveByCity(ctx context.Context, city string, limit int) ([]models.Vehicle, error)
}

type service struct {
	repo vehicleLoader
}

// NewService builds the vehicle service.
func NewService(repo vehicleLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vehicle repository required")
	}
	return &service{repo: repo}, nil
}

// GetBookable loads a vehicle that can currently accept a checkout. Missing
// and deactivated listings both surface as not found so the caller cannot
// distinguish them.
func (s *service) GetBookable(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	}
	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading vehicle")
	}
	if !vehicle.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}
	return vehicle, nil
}

func (s *service) ListActiveByCity(ctx context.Context, city string, limit int) ([]models.Vehicle, error) {
	if city == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city required")
	}
	rows, err := s.repo.ListActiveByCity(ctx, city, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing vehicles")
	}
	return rows, nil
}
