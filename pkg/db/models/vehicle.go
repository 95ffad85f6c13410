package models

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is the listing snapshot the checkout flow prices against. Rates
// and fees are integer cents.
type Vehicle struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	HostID              uuid.UUID  `gorm:"column:host_id;type:uuid;not null;index"`
	Make                string     `gorm:"column:make;not null"`
	Model               string     `gorm:"column:model;not null"`
	Year                int        `gorm:"column:year;not null"`
	City                string     `gorm:"column:city;not null"`
	DailyRateCents      int64      `gorm:"column:daily_rate_cents;not null"`
	WeeklyRateCents     *int64     `gorm:"column:weekly_rate_cents"`
	MonthlyRateCents    *int64     `gorm:"column:monthly_rate_cents"`
	EstimatedValueCents int64      `gorm:"column:estimated_value_cents;not null"`
	DepositCents        int64      `gorm:"column:deposit_cents;not null;default:0"`
	AirportDelivery     bool       `gorm:"column:airport_delivery;not null;default:false"`
	AirportFeeCents     int64      `gorm:"column:airport_fee_cents;not null;default:0"`
	HomeDelivery        bool       `gorm:"column:home_delivery;not null;default:false"`
	HomeFeeCents        int64      `gorm:"column:home_fee_cents;not null;default:0"`
	HotelDelivery       bool       `gorm:"column:hotel_delivery;not null;default:false"`
	HotelFeeCents       int64      `gorm:"column:hotel_fee_cents;not null;default:0"`
	IsActive            bool       `gorm:"column:is_active;not null;default:true"`
	DeactivatedAt       *time.Time `gorm:"column:deactivated_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
