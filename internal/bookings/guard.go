package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

// ReservationRequest is the commit payload for a checkout session. The
// breakdown and authorized charge are frozen into the booking row.
type ReservationRequest struct {
	SessionID             uuid.UUID
	VehicleID             uuid.UUID
	RenterID              uuid.UUID
	StartDate             time.Time
	EndDate               time.Time
	Currency              enums.Currency
	AuthorizationID       string
	AuthorizedChargeCents int64
	Breakdown             types.PriceBreakdown
}

func (req ReservationRequest) validate() error {
	if req.SessionID == uuid.Nil || req.VehicleID == uuid.Nil || req.RenterID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation ids are required")
	}
	if !req.StartDate.Before(req.EndDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "rental window must end after it starts")
	}
	if req.AuthorizationID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment authorization is required before reserving")
	}
	return nil
}

// Reserve re-checks vehicle availability and inserts the booking inside the
// caller's transaction. The caller must run it under serializable isolation
// so two overlapping commits cannot both observe a clear calendar.
func Reserve(ctx context.Context, tx *gorm.DB, req ReservationRequest) (*models.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	repo := NewRepository(tx)
	if _, err := repo.FindBySessionID(ctx, req.SessionID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "session already produced a booking")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check session booking")
	}

	overlapping, err := repo.CountOverlapping(ctx, req.VehicleID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check vehicle availability")
	}
	if overlapping > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAvailabilityConflict, "vehicle is no longer available for the selected dates")
	}

	booking := &models.Booking{
		ID:                    uuid.New(),
		SessionID:             req.SessionID,
		VehicleID:             req.VehicleID,
		RenterID:              req.RenterID,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		Status:                enums.BookingStatusConfirmed,
		PaymentStatus:         enums.PaymentStatusAuthorized,
		Currency:              req.Currency,
		AuthorizationID:       req.AuthorizationID,
		AuthorizedChargeCents: req.AuthorizedChargeCents,
		Breakdown:             req.Breakdown,
	}
	if err := repo.Create(ctx, booking); err != nil {
		if db.IsUniqueViolation(err, "ux_bookings_session") {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "session already produced a booking")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
	}
	return booking, nil
}
