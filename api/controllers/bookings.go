package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/api/responses"
	"github.com/calebreyes/driveshare-backend/internal/bookings"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

type bookingResponse struct {
	ID                    uuid.UUID             `json:"id"`
	SessionID             uuid.UUID             `json:"session_id"`
	VehicleID             uuid.UUID             `json:"vehicle_id"`
	StartDate             time.Time             `json:"start_date"`
	EndDate               time.Time             `json:"end_date"`
	Status                string                `json:"status"`
	PaymentStatus         string                `json:"payment_status"`
	Currency              string                `json:"currency"`
	AuthorizedChargeCents int64                 `json:"authorized_charge_cents"`
	Breakdown             *types.PriceBreakdown `json:"breakdown,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
}

func newBookingResponse(b models.Booking, includeBreakdown bool) bookingResponse {
	resp := bookingResponse{
		ID:                    b.ID,
		SessionID:             b.SessionID,
		VehicleID:             b.VehicleID,
		StartDate:             b.StartDate,
		EndDate:               b.EndDate,
		Status:                string(b.Status),
		PaymentStatus:         string(b.PaymentStatus),
		Currency:              string(b.Currency),
		AuthorizedChargeCents: b.AuthorizedChargeCents,
		CreatedAt:             b.CreatedAt,
	}
	if includeBreakdown {
		breakdown := b.Breakdown
		resp.Breakdown = &breakdown
	}
	return resp
}

// BookingDetail returns one booking owned by the caller, frozen breakdown
// included.
func BookingDetail(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := pathUUID(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.GetForRenter(r.Context(), userID, bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBookingResponse(*booking, true))
	}
}

// BookingList returns the caller's bookings, newest first.
func BookingList(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listed, err := svc.ListForRenter(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]bookingResponse, 0, len(listed))
		for _, b := range listed {
			out = append(out, newBookingResponse(b, false))
		}
		responses.WriteSuccess(w, map[string]any{"bookings": out})
	}
}
