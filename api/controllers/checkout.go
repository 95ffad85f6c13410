package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/api/middleware"
	"github.com/calebreyes/driveshare-backend/api/responses"
	"github.com/calebreyes/driveshare-backend/api/validators"
	checkoutsvc "github.com/calebreyes/driveshare-backend/internal/checkout"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

// callerID extracts the authenticated user id seeded by the auth middleware.
func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid caller identity")
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

type checkoutInitRequest struct {
	VehicleID uuid.UUID `json:"vehicle_id" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// CheckoutInit opens a checkout session against a vehicle and window.
func CheckoutInit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutInitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Init(r.Context(), userID, checkoutsvc.InitInput{
			VehicleID: body.VehicleID,
			StartDate: body.StartDate,
			EndDate:   body.EndDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type checkoutUpdateRequest struct {
	Step            *enums.CheckoutStep  `json:"step,omitempty"`
	InsuranceTier   *enums.InsuranceTier `json:"insurance_tier,omitempty"`
	DeliveryType    *enums.DeliveryType  `json:"delivery_type,omitempty"`
	AddOnIDs        *[]string            `json:"add_on_ids,omitempty"`
	PaymentMethodID types.NullableUUID   `json:"payment_method_id,omitempty"`

	AppliedCreditCents        *int64  `json:"applied_credit_cents,omitempty" validate:"omitempty,gte=0"`
	AppliedBonusCents         *int64  `json:"applied_bonus_cents,omitempty" validate:"omitempty,gte=0"`
	AppliedDepositWalletCents *int64  `json:"applied_deposit_wallet_cents,omitempty" validate:"omitempty,gte=0"`
	PromoCode                 *string `json:"promo_code,omitempty"`
}

// CheckoutUpdate applies a partial patch to an active session.
func CheckoutUpdate(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Update(r.Context(), userID, sessionID, checkoutsvc.UpdateInput{
			Step:                      body.Step,
			InsuranceTier:             body.InsuranceTier,
			DeliveryType:              body.DeliveryType,
			AddOnIDs:                  body.AddOnIDs,
			PaymentMethodID:           body.PaymentMethodID,
			AppliedCreditCents:        body.AppliedCreditCents,
			AppliedBonusCents:         body.AppliedBonusCents,
			AppliedDepositWalletCents: body.AppliedDepositWalletCents,
			PromoCode:                 body.PromoCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// CheckoutResume rehydrates a session with catalogs, pricing and saved cards.
func CheckoutResume(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Resume(r.Context(), userID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

type checkoutSwapRequest struct {
	VehicleID uuid.UUID `json:"vehicle_id" validate:"required"`
}

// CheckoutSwap retargets a session to a different vehicle.
func CheckoutSwap(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutSwapRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Swap(r.Context(), userID, sessionID, body.VehicleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// CheckoutAuthorize places the manual-capture hold for the session total.
func CheckoutAuthorize(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Authorize(r.Context(), userID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type checkoutConfirmRequest struct {
	AuthorizationID string `json:"authorization_id" validate:"required"`
}

type checkoutConfirmResponse struct {
	BookingID             uuid.UUID `json:"booking_id"`
	SessionID             uuid.UUID `json:"session_id"`
	VehicleID             uuid.UUID `json:"vehicle_id"`
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	Status                string    `json:"status"`
	PaymentStatus         string    `json:"payment_status"`
	AuthorizedChargeCents int64     `json:"authorized_charge_cents"`
}

// CheckoutConfirm runs the atomic availability commit and creates the booking.
func CheckoutConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutConfirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Confirm(r.Context(), userID, sessionID, body.AuthorizationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutConfirmResponse{
			BookingID:             booking.ID,
			SessionID:             booking.SessionID,
			VehicleID:             booking.VehicleID,
			StartDate:             booking.StartDate,
			EndDate:               booking.EndDate,
			Status:                string(booking.Status),
			PaymentStatus:         string(booking.PaymentStatus),
			AuthorizedChargeCents: booking.AuthorizedChargeCents,
		})
	}
}
