package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
)

type bookingLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByRenter(ctx context.Context, renterID uuid.UUID) ([]models.Booking, error)
	ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.Booking, error)
}

// Service exposes booking read paths for renters and hosts.
type Service interface {
	GetForRenter(ctx context.Context, renterID, bookingID uuid.UUID) (*models.Booking, error)
	ListForRenter(ctx context.Context, renterID uuid.UUID) ([]models.Booking, error)
	VehicleCalendar(ctx context.Context, vehicleID uuid.UUID) ([]models.Booking, error)
}

type service struct {
	repo bookingLoader
}

// NewService builds the booking read service.
func NewService(repo bookingLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	return &service{repo: repo}, nil
}

// GetForRenter loads a booking and enforces ownership. Bookings owned by
// someone else surface as not found.
func (s *service) GetForRenter(ctx context.Context, renterID, bookingID uuid.UUID) (*models.Booking, error) {
	if renterID == uuid.Nil || bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading booking")
	}
	if booking.RenterID != renterID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return booking, nil
}

func (s *service) ListForRenter(ctx context.Context, renterID uuid.UUID) ([]models.Booking, error) {
	if renterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "renter id required")
	}
	rows, err := s.repo.ListByRenter(ctx, renterID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing bookings")
	}
	return rows, nil
}

// VehicleCalendar returns the calendar-blocking windows for a vehicle so
// clients can grey out unavailable dates.
func (s *service) VehicleCalendar(ctx context.Context, vehicleID uuid.UUID) ([]models.Booking, error) {
	if vehicleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	}
	rows, err := s.repo.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing vehicle bookings")
	}
	return rows, nil
}
