package models

import (
	"time"

	"github.com/google/uuid"
)

// UserBalance tracks the guest's spendable platform balances. Deposit wallet
// funds offset the security deposit only, never the rental charge.
type UserBalance struct {
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CreditCents        int64     `gorm:"column:credit_cents;not null;default:0"`
	BonusCents         int64     `gorm:"column:bonus_cents;not null;default:0"`
	DepositWalletCents int64     `gorm:"column:deposit_wallet_cents;not null;default:0"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
