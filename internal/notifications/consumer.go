package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/outbox"
	"github.com/calebreyes/driveshare-backend/pkg/outbox/idempotency"
	"github.com/calebreyes/driveshare-backend/pkg/outbox/payloads"
)

const bookingNotificationConsumer = "booking-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns booking outcomes into in-app
// notifications. Delivery failure never affects the originating commit.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a booking notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	switch eventType {
	case enums.EventBookingConfirmed, enums.EventBookingConflictLost:
	default:
		c.logg.Info(logCtx, "skipping event without notification mapping")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, bookingNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, bookingNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventBookingConfirmed:
		var payload payloads.BookingConfirmedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse booking confirmed payload: %w", err)
		}
		return c.notifyBookingConfirmed(ctx, payload, logCtx)
	case enums.EventBookingConflictLost:
		var payload payloads.BookingConflictLostEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse conflict lost payload: %w", err)
		}
		return c.notifyConflictLost(ctx, payload, logCtx)
	}
	return nil
}

// notifyBookingConfirmed writes one notification to the renter and one to
// the host.
func (c *Consumer) notifyBookingConfirmed(ctx context.Context, payload payloads.BookingConfirmedEvent, logCtx context.Context) error {
	if payload.RenterID == uuid.Nil || payload.HostID == uuid.Nil {
		return fmt.Errorf("booking confirmed payload missing parties")
	}
	window := fmt.Sprintf("%s to %s",
		payload.StartDate.Format("Jan 2"), payload.EndDate.Format("Jan 2, 2006"))

	renterNote := &models.Notification{
		UserID:  payload.RenterID,
		Type:    enums.NotificationBookingConfirmed,
		Title:   "Booking confirmed",
		Message: fmt.Sprintf("Your trip from %s is confirmed.", window),
		Link:    stringPtr(fmt.Sprintf("/bookings/%s", payload.BookingID)),
	}
	if err := c.repo.Create(ctx, renterNote); err != nil {
		return err
	}

	hostNote := &models.Notification{
		UserID:  payload.HostID,
		Type:    enums.NotificationBookingConfirmed,
		Title:   "New booking",
		Message: fmt.Sprintf("Your vehicle is booked from %s.", window),
		Link:    stringPtr(fmt.Sprintf("/host/bookings/%s", payload.BookingID)),
	}
	if err := c.repo.Create(ctx, hostNote); err != nil {
		return err
	}

	c.logg.Info(logCtx, "booking confirmation notifications created")
	return nil
}

// notifyConflictLost tells the renter their dates were taken and whether
// the payment hold came off.
func (c *Consumer) notifyConflictLost(ctx context.Context, payload payloads.BookingConflictLostEvent, logCtx context.Context) error {
	if payload.RenterID == uuid.Nil {
		return fmt.Errorf("conflict lost payload missing renter")
	}
	message := "The dates you selected were booked by someone else. Your payment hold has been released."
	if !payload.HoldReleased {
		message = "The dates you selected were booked by someone else. Your payment hold is being released."
	}
	notification := &models.Notification{
		UserID:  payload.RenterID,
		Type:    enums.NotificationBookingConflict,
		Title:   "Dates no longer available",
		Message: message,
		Link:    stringPtr(fmt.Sprintf("/vehicles/%s", payload.VehicleID)),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "conflict notification created")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
