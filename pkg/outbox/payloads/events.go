package payloads

import (
	"time"

	"github.com/google/uuid"
)

// BookingConfirmedEvent is emitted when the atomic commit succeeds.
type BookingConfirmedEvent struct {
	BookingID             uuid.UUID `json:"booking_id"`
	SessionID             uuid.UUID `json:"session_id"`
	VehicleID             uuid.UUID `json:"vehicle_id"`
	RenterID              uuid.UUID `json:"renter_id"`
	HostID                uuid.UUID `json:"host_id"`
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	AuthorizedChargeCents int64     `json:"authorized_charge_cents"`
}

// BookingConflictLostEvent records a confirm attempt that lost the
// availability race after its payment hold was released.
type BookingConflictLostEvent struct {
	SessionID    uuid.UUID `json:"session_id"`
	VehicleID    uuid.UUID `json:"vehicle_id"`
	RenterID     uuid.UUID `json:"renter_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	HoldReleased bool      `json:"hold_released"`
}

// SessionExpiredEvent is emitted when the sweep job lazily expires a session.
type SessionExpiredEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	VehicleID uuid.UUID `json:"vehicle_id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
}
