package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/outbox"
	"github.com/calebreyes/driveshare-backend/pkg/outbox/payloads"
)

const sessionSweepBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleSessionStore interface {
	ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutSession, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
}

type sweepPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SessionSweepJobParams configure the checkout session sweep.
type SessionSweepJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Sessions  staleSessionStore
	Outbox    sweepPublisher
	BatchSize int
}

// NewSessionSweepJob flips active sessions past their TTL to expired. Lazy
// reads produce the same transition; the sweep catches sessions nobody
// touches again. Payment holds are left alone and lapse at the processor.
func NewSessionSweepJob(params SessionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = sessionSweepBatchSize
	}
	return &sessionSweepJob{
		logg:     params.Logger,
		db:       params.DB,
		sessions: params.Sessions,
		outbox:   params.Outbox,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type sessionSweepJob struct {
	logg     *logger.Logger
	db       txRunner
	sessions staleSessionStore
	outbox   sweepPublisher
	batch    int
	now      func() time.Time
}

func (j *sessionSweepJob) Name() string { return "session-sweep" }

func (j *sessionSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var expired int
	var errs []error

	for {
		stale, err := j.sessions.ListStaleActive(ctx, cutoff, j.batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("session sweep: list stale: %w", err))
			break
		}
		if len(stale) == 0 {
			break
		}

		for _, session := range stale {
			flipped, err := j.sessions.MarkExpired(ctx, session.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("session sweep: expire %s: %w", session.ID, err))
				continue
			}
			if !flipped {
				// A lazy read or a concurrent confirm got there first.
				continue
			}
			expired++
			j.emitExpired(ctx, session, cutoff)
		}

		if len(stale) < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"sessions_expired": expired,
	})
	j.logg.Info(logCtx, "session sweep complete")
	return multierr.Combine(errs...)
}

// emitExpired records the transition for downstream consumers. Failure is
// logged and swallowed; the status flip already happened.
func (j *sessionSweepJob) emitExpired(ctx context.Context, session models.CheckoutSession, at time.Time) {
	event := outbox.DomainEvent{
		EventType:     enums.EventSessionExpired,
		AggregateType: enums.AggregateCheckoutSession,
		AggregateID:   session.ID,
		Data: payloads.SessionExpiredEvent{
			SessionID: session.ID,
			VehicleID: session.VehicleID,
			UserID:    session.UserID,
			ExpiredAt: at,
		},
		Version: 1,
	}
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, event)
	}); err != nil {
		j.logg.Error(j.logg.WithSessionID(ctx, session.ID.String()), "failed to record session expiry", err)
	}
}
