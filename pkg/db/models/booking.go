package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/pkg/enums"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

// Booking is created exactly once per checkout session by the atomic commit.
// The financial breakdown is frozen at commit time and never re-derived from
// the vehicle's later rates.
type Booking struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID uuid.UUID `gorm:"column:session_id;type:uuid;not null;uniqueIndex:ux_bookings_session"`
	VehicleID uuid.UUID `gorm:"column:vehicle_id;type:uuid;not null;index"`
	RenterID  uuid.UUID `gorm:"column:renter_id;type:uuid;not null;index"`
	StartDate time.Time `gorm:"column:start_date;not null"`
	EndDate   time.Time `gorm:"column:end_date;not null"`

	Status        enums.BookingStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'authorized'"`
	Currency      enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`

	AuthorizationID       string               `gorm:"column:authorization_id;not null"`
	AuthorizedChargeCents int64                `gorm:"column:authorized_charge_cents;not null"`
	Breakdown             types.PriceBreakdown `gorm:"column:breakdown;type:jsonb;serializer:json;not null"`

	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
