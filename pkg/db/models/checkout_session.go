package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/calebreyes/driveshare-backend/pkg/enums"
)

// CheckoutSession is the persisted soft lock for an in-progress checkout.
// It survives process restarts so any worker can service any request; all
// monetary selections are recomputed server-side on every read that prices.
type CheckoutSession struct {
	ID        uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	VehicleID uuid.UUID           `gorm:"column:vehicle_id;type:uuid;not null;index"`
	StartDate time.Time           `gorm:"column:start_date;not null"`
	EndDate   time.Time           `gorm:"column:end_date;not null"`
	Step      enums.CheckoutStep  `gorm:"column:step;type:text;not null;default:'insurance'"`
	Status    enums.SessionStatus `gorm:"column:status;type:text;not null;default:'active'"`

	InsuranceTier   *enums.InsuranceTier `gorm:"column:insurance_tier;type:text"`
	DeliveryType    *enums.DeliveryType  `gorm:"column:delivery_type;type:text"`
	AddOnIDs        pq.StringArray       `gorm:"column:add_on_ids;type:text[];not null;default:ARRAY[]::text[]"`
	PaymentMethodID *uuid.UUID           `gorm:"column:payment_method_id;type:uuid"`

	AppliedCreditCents        int64   `gorm:"column:applied_credit_cents;not null;default:0"`
	AppliedBonusCents         int64   `gorm:"column:applied_bonus_cents;not null;default:0"`
	AppliedDepositWalletCents int64   `gorm:"column:applied_deposit_wallet_cents;not null;default:0"`
	PromoCode                 *string `gorm:"column:promo_code"`

	// DailyRateAtCheckoutCents snapshots the vehicle rate at session creation.
	// It exists only to detect price drift; the charge is always recomputed
	// from the live vehicle record.
	DailyRateAtCheckoutCents int64 `gorm:"column:daily_rate_at_checkout_cents;not null"`

	AuthorizationID *string `gorm:"column:authorization_id"`

	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	Version   int64     `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the session's TTL has elapsed at the given instant.
func (s CheckoutSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
