package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash     string         `gorm:"column:password_hash;not null"`
	FirstName        string         `gorm:"column:first_name;not null"`
	LastName         string         `gorm:"column:last_name;not null"`
	Phone            *string        `gorm:"column:phone"`
	Role             enums.UserRole `gorm:"column:role;type:text;not null;default:'guest'"`
	IdentityVerified bool           `gorm:"column:identity_verified;not null;default:false"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt      *time.Time     `gorm:"column:last_login_at"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
