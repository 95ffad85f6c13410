package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessorCustomer links a user to their customer record at a payment
// processor. One row per user and provider.
type ProcessorCustomer struct {
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Provider    string    `gorm:"column:provider;primaryKey"`
	CustomerRef string    `gorm:"column:customer_ref;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
