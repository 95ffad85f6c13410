package models

import (
	"time"

	"github.com/google/uuid"
)

// PromoCode is a flat-amount discount applied to the rental total.
type PromoCode struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string     `gorm:"column:code;not null;uniqueIndex"`
	DiscountCents int64      `gorm:"column:discount_cents;not null"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
