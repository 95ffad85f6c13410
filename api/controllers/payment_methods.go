package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/api/responses"
	"github.com/calebreyes/driveshare-backend/api/validators"
	"github.com/calebreyes/driveshare-backend/internal/instruments"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
)

type paymentMethodResponse struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	CardBrand    *string   `json:"card_brand,omitempty"`
	CardLast4    *string   `json:"card_last4,omitempty"`
	CardExpMonth *int      `json:"card_exp_month,omitempty"`
	CardExpYear  *int      `json:"card_exp_year,omitempty"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
}

func newPaymentMethodResponse(m models.PaymentMethod) paymentMethodResponse {
	return paymentMethodResponse{
		ID:           m.ID,
		Provider:     m.Provider,
		CardBrand:    m.CardBrand,
		CardLast4:    m.CardLast4,
		CardExpMonth: m.CardExpMonth,
		CardExpYear:  m.CardExpYear,
		IsDefault:    m.IsDefault,
		CreatedAt:    m.CreatedAt,
	}
}

type savePaymentMethodRequest struct {
	SourceID          string `json:"source_id" validate:"required"`
	CardholderName    string `json:"cardholder_name,omitempty" validate:"omitempty,max=128"`
	VerificationToken string `json:"verification_token,omitempty"`
	IsDefault         bool   `json:"is_default,omitempty"`
}

// PaymentMethodSave vaults a tokenized card for the caller.
func PaymentMethodSave(svc instruments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body savePaymentMethodRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := svc.SaveCard(r.Context(), userID, instruments.SaveCardInput{
			SourceID:          body.SourceID,
			CardholderName:    body.CardholderName,
			VerificationToken: body.VerificationToken,
			IsDefault:         body.IsDefault,
			IdempotencyKey:    strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentMethodResponse(*method))
	}
}

// PaymentMethodList returns the caller's saved cards, default first.
func PaymentMethodList(svc instruments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		methods, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]paymentMethodResponse, 0, len(methods))
		for _, m := range methods {
			out = append(out, newPaymentMethodResponse(m))
		}
		responses.WriteSuccess(w, map[string]any{"payment_methods": out})
	}
}

// PaymentMethodSetDefault promotes one saved card to default.
func PaymentMethodSetDefault(svc instruments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methodID, err := pathUUID(r, "paymentMethodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetDefault(r.Context(), userID, methodID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// PaymentMethodRemove deletes a saved card.
func PaymentMethodRemove(svc instruments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methodID, err := pathUUID(r, "paymentMethodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), userID, methodID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
