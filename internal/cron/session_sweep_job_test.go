package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/outbox"
)

func TestSessionSweepExpiresStaleSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{
		stale: []models.CheckoutSession{
			{ID: uuid.New(), UserID: uuid.New(), VehicleID: uuid.New()},
			{ID: uuid.New(), UserID: uuid.New(), VehicleID: uuid.New()},
		},
	}
	publisher := &fakeSweepPublisher{}
	job := newSessionSweepJob(t, store, publisher)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.expiredIDs) != 2 {
		t.Fatalf("expired = %d", len(store.expiredIDs))
	}
	if len(publisher.events) != 2 {
		t.Fatalf("events = %d", len(publisher.events))
	}
	if publisher.events[0].EventType != enums.EventSessionExpired {
		t.Fatalf("event type = %s", publisher.events[0].EventType)
	}
	if !store.lastCutoff.Equal(now) {
		t.Fatalf("cutoff = %s", store.lastCutoff)
	}
}

func TestSessionSweepSkipsAlreadyTransitioned(t *testing.T) {
	store := &fakeSessionStore{
		stale:               []models.CheckoutSession{{ID: uuid.New()}},
		alreadyTransitioned: true,
	}
	publisher := &fakeSweepPublisher{}
	job := newSessionSweepJob(t, store, publisher)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(publisher.events) != 0 {
		t.Fatal("no event for a session someone else transitioned")
	}
}

func TestSessionSweepPropagatesListError(t *testing.T) {
	store := &fakeSessionStore{listErr: errors.New("boom")}
	job := newSessionSweepJob(t, store, &fakeSweepPublisher{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSessionSweepToleratesEmitFailure(t *testing.T) {
	store := &fakeSessionStore{stale: []models.CheckoutSession{{ID: uuid.New()}}}
	publisher := &fakeSweepPublisher{err: errors.New("outbox down")}
	job := newSessionSweepJob(t, store, publisher)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("emit failure must not fail the sweep: %v", err)
	}
	if len(store.expiredIDs) != 1 {
		t.Fatal("session should still be expired")
	}
}

func newSessionSweepJob(t *testing.T, store *fakeSessionStore, publisher *fakeSweepPublisher) *sessionSweepJob {
	t.Helper()
	jobIface, err := NewSessionSweepJob(SessionSweepJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		DB:       sweepFakeTxRunner{},
		Sessions: store,
		Outbox:   publisher,
	})
	if err != nil {
		t.Fatalf("NewSessionSweepJob: %v", err)
	}
	job, ok := jobIface.(*sessionSweepJob)
	if !ok {
		t.Fatalf("expected sessionSweepJob, got %T", jobIface)
	}
	return job
}

type fakeSessionStore struct {
	stale      []models.CheckoutSession
	listErr    error
	lastCutoff time.Time
	served     bool

	alreadyTransitioned bool
	markErr             error
	expiredIDs          []uuid.UUID
}

func (f *fakeSessionStore) ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutSession, error) {
	f.lastCutoff = cutoff
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.served {
		return nil, nil
	}
	f.served = true
	return f.stale, nil
}

func (f *fakeSessionStore) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.alreadyTransitioned {
		return false, nil
	}
	f.expiredIDs = append(f.expiredIDs, id)
	return true, nil
}

type fakeSweepPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeSweepPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type sweepFakeTxRunner struct{}

func (sweepFakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
