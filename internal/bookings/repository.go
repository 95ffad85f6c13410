package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
)

// Repository exposes persistence for bookings.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the booking row.
func (r *Repository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

// CountOverlapping counts calendar-blocking bookings whose window overlaps
// [start, end). Two half-open windows overlap when each starts before the
// other ends.
func (r *Repository) CountOverlapping(ctx context.Context, vehicleID uuid.UUID, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("vehicle_id = ?", vehicleID).
		Where("status IN ?", statusStrings(enums.ActiveLifecycleBookingStatuses)).
		Where("start_date < ? AND end_date > ?", end, start).
		Count(&count).Error
	return count, err
}

// FindByID loads a booking by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindBySessionID loads the booking created for a checkout session, if any.
func (r *Repository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListByRenter returns the renter's bookings, newest first.
func (r *Repository) ListByRenter(ctx context.Context, renterID uuid.UUID) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("renter_id = ?", renterID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListByVehicle returns calendar-blocking bookings for a vehicle ordered by
// start date. Used to render availability.
func (r *Repository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Where("status IN ?", statusStrings(enums.ActiveLifecycleBookingStatuses)).
		Order("start_date ASC").
		Find(&rows).Error
	return rows, err
}

func statusStrings(statuses []enums.BookingStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
