package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/internal/pricing"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

// Catalogs bundles the selectable options priced for one vehicle and window.
type Catalogs struct {
	Insurance []pricing.InsuranceOption `json:"insurance"`
	Delivery  []pricing.DeliveryOption  `json:"delivery"`
	AddOns    []pricing.AddOn           `json:"add_ons"`
}

// InitResult is returned when a checkout session is opened.
type InitResult struct {
	SessionID    uuid.UUID           `json:"session_id"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Days         int                 `json:"days"`
	Catalogs     Catalogs            `json:"catalogs"`
	DepositCents int64               `json:"deposit_cents"`
	Balances     *models.UserBalance `json:"balances"`
}

// UpdateResult acknowledges a session patch.
type UpdateResult struct {
	SessionID  uuid.UUID         `json:"session_id"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Version    int64             `json:"version"`
	PriceDrift *types.PriceDrift `json:"price_drift,omitempty"`
}

// Selections is the client-visible slice of session state.
type Selections struct {
	Step            enums.CheckoutStep   `json:"step"`
	InsuranceTier   *enums.InsuranceTier `json:"insurance_tier,omitempty"`
	DeliveryType    *enums.DeliveryType  `json:"delivery_type,omitempty"`
	AddOnIDs        []string             `json:"add_on_ids"`
	PaymentMethodID *uuid.UUID           `json:"payment_method_id,omitempty"`

	AppliedCreditCents        int64   `json:"applied_credit_cents"`
	AppliedBonusCents         int64   `json:"applied_bonus_cents"`
	AppliedDepositWalletCents int64   `json:"applied_deposit_wallet_cents"`
	PromoCode                 *string `json:"promo_code,omitempty"`
}

// PaymentState is the non-fatal view of a stored authorization, rehydrated
// from the processor on resume.
type PaymentState struct {
	AuthorizationID string `json:"authorization_id"`
	Status          string `json:"status,omitempty"`
	ClientSecret    string `json:"client_secret,omitempty"`
}

// SessionView is the full rehydrated session returned by resume.
type SessionView struct {
	SessionID  uuid.UUID              `json:"session_id"`
	VehicleID  uuid.UUID              `json:"vehicle_id"`
	StartDate  time.Time              `json:"start_date"`
	EndDate    time.Time              `json:"end_date"`
	ExpiresAt  time.Time              `json:"expires_at"`
	Version    int64                  `json:"version"`
	Selections Selections             `json:"selections"`
	Catalogs   Catalogs               `json:"catalogs"`
	Breakdown  *types.PriceBreakdown  `json:"breakdown"`
	PriceDrift *types.PriceDrift      `json:"price_drift,omitempty"`
	SavedCards []models.PaymentMethod `json:"saved_cards"`
	Payment    *PaymentState          `json:"payment,omitempty"`
}

// SwapResult is returned after retargeting a session to a new vehicle.
type SwapResult struct {
	SessionID      uuid.UUID  `json:"session_id"`
	VehicleID      uuid.UUID  `json:"vehicle_id"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Catalogs       Catalogs   `json:"catalogs"`
	Selections     Selections `json:"selections"`
	HoldReleased   bool       `json:"hold_released"`
	DeliveryKept   bool       `json:"delivery_kept"`
	DepositCents   int64      `json:"deposit_cents"`
	DailyRateCents int64      `json:"daily_rate_cents"`
}

// AuthorizeResult reports the outcome of placing the payment hold.
type AuthorizeResult struct {
	AuthorizationID string `json:"authorization_id"`
	Confirmed       bool   `json:"confirmed"`
	RequiresAction  bool   `json:"requires_action"`
	ClientSecret    string `json:"client_secret,omitempty"`
	AmountCents     int64  `json:"amount_cents"`
}
