package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/api/responses"
	"github.com/calebreyes/driveshare-backend/api/validators"
	"github.com/calebreyes/driveshare-backend/internal/vehicles"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
)

type vehicleResponse struct {
	ID                  uuid.UUID `json:"id"`
	Make                string    `json:"make"`
	Model               string    `json:"model"`
	Year                int       `json:"year"`
	City                string    `json:"city"`
	DailyRateCents      int64     `json:"daily_rate_cents"`
	WeeklyRateCents     *int64    `json:"weekly_rate_cents,omitempty"`
	MonthlyRateCents    *int64    `json:"monthly_rate_cents,omitempty"`
	EstimatedValueCents int64     `json:"estimated_value_cents"`
	DepositCents        int64     `json:"deposit_cents"`
	AirportDelivery     bool      `json:"airport_delivery"`
	HomeDelivery        bool      `json:"home_delivery"`
	HotelDelivery       bool      `json:"hotel_delivery"`
	CreatedAt           time.Time `json:"created_at"`
}

func newVehicleResponse(v models.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:                  v.ID,
		Make:                v.Make,
		Model:               v.Model,
		Year:                v.Year,
		City:                v.City,
		DailyRateCents:      v.DailyRateCents,
		WeeklyRateCents:     v.WeeklyRateCents,
		MonthlyRateCents:    v.MonthlyRateCents,
		EstimatedValueCents: v.EstimatedValueCents,
		DepositCents:        v.DepositCents,
		AirportDelivery:     v.AirportDelivery,
		HomeDelivery:        v.HomeDelivery,
		HotelDelivery:       v.HotelDelivery,
		CreatedAt:           v.CreatedAt,
	}
}

// VehicleDetail returns the bookable snapshot clients start a checkout from.
func VehicleDetail(svc vehicles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vehicle service unavailable"))
			return
		}

		id, err := pathUUID(r, "vehicleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicle, err := svc.GetBookable(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newVehicleResponse(*vehicle))
	}
}

// VehicleList returns active vehicles, optionally scoped to a city.
func VehicleList(svc vehicles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vehicle service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		city := strings.TrimSpace(r.URL.Query().Get("city"))

		listed, err := svc.ListActiveByCity(r.Context(), city, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]vehicleResponse, 0, len(listed))
		for _, v := range listed {
			out = append(out, newVehicleResponse(v))
		}
		responses.WriteSuccess(w, map[string]any{"vehicles": out})
	}
}
