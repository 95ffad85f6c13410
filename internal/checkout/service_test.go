package checkout

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/internal/payments"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/outbox"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Postgres-only defaults in the model tags keep AutoMigrate off the
	// table here; the schema is created by hand.
	for _, ddl := range []string{
		`CREATE TABLE checkout_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			vehicle_id TEXT NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			step TEXT NOT NULL DEFAULT 'insurance',
			status TEXT NOT NULL DEFAULT 'active',
			insurance_tier TEXT,
			delivery_type TEXT,
			add_on_ids TEXT NOT NULL DEFAULT '{}',
			payment_method_id TEXT,
			applied_credit_cents INTEGER NOT NULL DEFAULT 0,
			applied_bonus_cents INTEGER NOT NULL DEFAULT 0,
			applied_deposit_wallet_cents INTEGER NOT NULL DEFAULT 0,
			promo_code TEXT,
			daily_rate_at_checkout_cents INTEGER NOT NULL,
			authorization_id TEXT,
			expires_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE bookings (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			vehicle_id TEXT NOT NULL,
			renter_id TEXT NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			payment_status TEXT NOT NULL DEFAULT 'authorized',
			currency TEXT NOT NULL DEFAULT 'USD',
			authorization_id TEXT NOT NULL,
			authorized_charge_cents INTEGER NOT NULL,
			breakdown TEXT NOT NULL,
			cancelled_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *gormTxRunner) WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// commitAbortTxRunner makes the next serializable commit fail with SQLSTATE
// 40001 after the callback ran clean, the way postgres kills the loser of two
// interleaved bookings at COMMIT time.
type commitAbortTxRunner struct {
	inner  *gormTxRunner
	aborts int
}

func (r *commitAbortTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.inner.WithTx(ctx, fn)
}

func (r *commitAbortTxRunner) WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.aborts == 0 {
		return r.inner.WithSerializableTx(ctx, fn)
	}
	r.aborts--
	return r.inner.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to read/write dependencies among transactions"}
	})
}

type stubVehicles struct {
	byID map[uuid.UUID]*models.Vehicle
}

func (s *stubVehicles) GetBookable(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	vehicle, ok := s.byID[id]
	if !ok || !vehicle.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}
	return vehicle, nil
}

type stubWallet struct {
	balance *models.UserBalance
	promos  map[string]*models.PromoCode
}

func (s *stubWallet) Balances(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	if s.balance != nil {
		return s.balance, nil
	}
	return &models.UserBalance{UserID: userID}, nil
}

func (s *stubWallet) ValidatePromo(ctx context.Context, code string, now time.Time) (*models.PromoCode, error) {
	promo, ok := s.promos[code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not valid")
	}
	return promo, nil
}

type stubInstruments struct {
	cards []models.PaymentMethod
}

func (s *stubInstruments) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error) {
	out := []models.PaymentMethod{}
	for _, card := range s.cards {
		if card.UserID == userID {
			out = append(out, card)
		}
	}
	return out, nil
}

func (s *stubInstruments) FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.PaymentMethod, error) {
	for i := range s.cards {
		if s.cards[i].ID == id && s.cards[i].UserID == userID {
			return &s.cards[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
}

type authorizeOutcome struct {
	auth *payments.Authorization
	err  error
}

type stubPayments struct {
	authorizeCalls []payments.AuthorizeInput
	authorizeQueue []authorizeOutcome

	retrieveAuth *payments.Authorization
	retrieveErr  error

	confirmAuth  *payments.Authorization
	confirmErr   error
	confirmCalls []string

	cancelIDs []string
}

func (s *stubPayments) Name() string { return "stub" }

func (s *stubPayments) Authorize(ctx context.Context, in payments.AuthorizeInput) (*payments.Authorization, error) {
	s.authorizeCalls = append(s.authorizeCalls, in)
	if len(s.authorizeQueue) > 0 {
		outcome := s.authorizeQueue[0]
		s.authorizeQueue = s.authorizeQueue[1:]
		return outcome.auth, outcome.err
	}
	return &payments.Authorization{
		ID:          "pi_" + uuid.NewString(),
		Status:      payments.StatusAuthorized,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
	}, nil
}

func (s *stubPayments) ConfirmWithInstrument(ctx context.Context, authorizationID, instrumentRef string) (*payments.Authorization, error) {
	s.confirmCalls = append(s.confirmCalls, authorizationID)
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	if s.confirmAuth != nil {
		return s.confirmAuth, nil
	}
	return nil, errors.New("not implemented")
}

func (s *stubPayments) Cancel(ctx context.Context, authorizationID string) error {
	s.cancelIDs = append(s.cancelIDs, authorizationID)
	return nil
}

func (s *stubPayments) RetrieveStatus(ctx context.Context, authorizationID string) (*payments.Authorization, error) {
	if s.retrieveErr != nil {
		return nil, s.retrieveErr
	}
	if s.retrieveAuth != nil {
		return s.retrieveAuth, nil
	}
	return &payments.Authorization{ID: authorizationID, Status: payments.StatusAuthorized}, nil
}

type stubReleaser struct {
	calls []string
	fail  bool
}

func (s *stubReleaser) Release(ctx context.Context, authorizationID, reason string) bool {
	s.calls = append(s.calls, authorizationID)
	return !s.fail
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type fixture struct {
	svc         Service
	db          *gorm.DB
	sessions    *Repository
	vehicles    *stubVehicles
	wallet      *stubWallet
	instruments *stubInstruments
	provider    *stubPayments
	releaser    *stubReleaser
	outbox      *stubOutbox

	now       time.Time
	userID    uuid.UUID
	vehicleID uuid.UUID
}

// exampleVehicle matches the documented pricing walkthrough: $100/day, $35k
// value, $500 deposit, airport delivery at $25, Phoenix tax.
func exampleVehicle() *models.Vehicle {
	return &models.Vehicle{
		ID:                  uuid.New(),
		HostID:              uuid.New(),
		Make:                "Toyota",
		Model:               "4Runner",
		Year:                2023,
		City:                "Phoenix",
		DailyRateCents:      100_00,
		EstimatedValueCents: 35_000_00,
		DepositCents:        500_00,
		AirportDelivery:     true,
		AirportFeeCents:     25_00,
		IsActive:            true,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	vehicle := exampleVehicle()
	userID := uuid.New()

	f := &fixture{
		db:       db,
		sessions: NewRepository(db),
		vehicles: &stubVehicles{byID: map[uuid.UUID]*models.Vehicle{vehicle.ID: vehicle}},
		wallet: &stubWallet{
			balance: &models.UserBalance{UserID: userID, CreditCents: 100_00, BonusCents: 50_00, DepositWalletCents: 600_00},
			promos:  map[string]*models.PromoCode{},
		},
		instruments: &stubInstruments{},
		provider:    &stubPayments{},
		releaser:    &stubReleaser{},
		outbox:      &stubOutbox{},
		now:         time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
		userID:      userID,
		vehicleID:   vehicle.ID,
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(
		&gormTxRunner{db: db},
		f.sessions,
		f.vehicles,
		f.wallet,
		f.instruments,
		f.provider,
		f.releaser,
		f.outbox,
		logg,
		15*time.Minute,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.(*service).now = func() time.Time { return f.now }
	f.svc = svc
	return f
}

func (f *fixture) initSession(t *testing.T) uuid.UUID {
	t.Helper()
	result, err := f.svc.Init(context.Background(), f.userID, InitInput{
		VehicleID: f.vehicleID,
		StartDate: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 13, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return result.SessionID
}

func (f *fixture) workedExampleSession(t *testing.T) uuid.UUID {
	t.Helper()
	sessionID := f.initSession(t)
	tier := enums.InsuranceTierBasic
	delivery := enums.DeliveryTypeAirport
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{
		InsuranceTier: &tier,
		DeliveryType:  &delivery,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return sessionID
}

func codeOf(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return typed.Code()
}

func TestInitCreatesSession(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Init(context.Background(), f.userID, InitInput{
		VehicleID: f.vehicleID,
		StartDate: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 13, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if result.Days != 3 {
		t.Fatalf("days = %d", result.Days)
	}
	if want := f.now.Add(15 * time.Minute); !result.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", result.ExpiresAt, want)
	}
	if len(result.Catalogs.Insurance) != 4 {
		t.Fatalf("insurance catalog size = %d", len(result.Catalogs.Insurance))
	}
	if len(result.Catalogs.Delivery) != 2 {
		t.Fatalf("delivery catalog = %+v", result.Catalogs.Delivery)
	}
	if len(result.Catalogs.AddOns) == 0 {
		t.Fatal("expected add-on catalog")
	}
	if result.DepositCents != 500_00 {
		t.Fatalf("deposit = %d", result.DepositCents)
	}
	if result.Balances.CreditCents != 100_00 {
		t.Fatalf("balances = %+v", result.Balances)
	}

	session, err := f.sessions.FindByID(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Status != enums.SessionStatusActive || session.Step != enums.CheckoutStepInsurance {
		t.Fatalf("unexpected session state: %+v", session)
	}
	if session.DailyRateAtCheckoutCents != 100_00 {
		t.Fatalf("rate snapshot = %d", session.DailyRateAtCheckoutCents)
	}
}

func TestInitRejectsUnknownVehicle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Init(context.Background(), f.userID, InitInput{
		VehicleID: uuid.New(),
		StartDate: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 13, 10, 0, 0, 0, time.UTC),
	})
	if codeOf(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInitRejectsBackwardsWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Init(context.Background(), f.userID, InitInput{
		VehicleID: f.vehicleID,
		StartDate: time.Date(2026, time.March, 13, 10, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
	})
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateExtendsTTLAndResumeEchoesSelections(t *testing.T) {
	f := newFixture(t)
	sessionID := f.initSession(t)

	f.now = f.now.Add(5 * time.Minute)
	tier := enums.InsuranceTierBasic
	delivery := enums.DeliveryTypeAirport
	addOns := []string{"child_seat", "cooler"}
	step := enums.CheckoutStepAddons
	result, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{
		Step:          &step,
		InsuranceTier: &tier,
		DeliveryType:  &delivery,
		AddOnIDs:      &addOns,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if want := f.now.Add(15 * time.Minute); !result.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", result.ExpiresAt, want)
	}

	view, err := f.svc.Resume(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	sel := view.Selections
	if sel.Step != enums.CheckoutStepAddons {
		t.Fatalf("step = %q", sel.Step)
	}
	if sel.InsuranceTier == nil || *sel.InsuranceTier != enums.InsuranceTierBasic {
		t.Fatalf("insurance tier = %v", sel.InsuranceTier)
	}
	if sel.DeliveryType == nil || *sel.DeliveryType != enums.DeliveryTypeAirport {
		t.Fatalf("delivery = %v", sel.DeliveryType)
	}
	if len(sel.AddOnIDs) != 2 || sel.AddOnIDs[0] != "child_seat" || sel.AddOnIDs[1] != "cooler" {
		t.Fatalf("add-ons = %v", sel.AddOnIDs)
	}
}

func TestUpdateRejectsForeignSession(t *testing.T) {
	f := newFixture(t)
	sessionID := f.initSession(t)

	step := enums.CheckoutStepReview
	_, err := f.svc.Update(context.Background(), uuid.New(), sessionID, UpdateInput{Step: &step})
	if codeOf(t, err) != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateAfterTTLExpiresSession(t *testing.T) {
	f := newFixture(t)
	sessionID := f.initSession(t)

	f.now = f.now.Add(15 * time.Minute)
	step := enums.CheckoutStepReview
	_, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{Step: &step})
	if codeOf(t, err) != pkgerrors.CodeSessionExpired {
		t.Fatalf("expected session expired, got %v", err)
	}

	session, err := f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Status != enums.SessionStatusExpired {
		t.Fatalf("status = %q, want expired", session.Status)
	}
}

func TestUpdateRejectsExcessiveCredit(t *testing.T) {
	f := newFixture(t)
	sessionID := f.initSession(t)

	tooMuch := int64(200_00)
	_, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{AppliedCreditCents: &tooMuch})
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateRejectsUnavailableDelivery(t *testing.T) {
	f := newFixture(t)
	sessionID := f.initSession(t)

	home := enums.DeliveryTypeHome
	_, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{DeliveryType: &home})
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateReportsPriceDrift(t *testing.T) {
	f := newFixture(t)
	sessionID := f.initSession(t)

	f.vehicles.byID[f.vehicleID].DailyRateCents = 120_00
	step := enums.CheckoutStepReview
	result, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{Step: &step})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result.PriceDrift == nil {
		t.Fatal("expected price drift")
	}
	if result.PriceDrift.OldDailyRateCents != 100_00 || result.PriceDrift.NewDailyRateCents != 120_00 {
		t.Fatalf("drift = %+v", result.PriceDrift)
	}
}

func TestResumeRecomputesWorkedExample(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)

	view, err := f.svc.Resume(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	b := view.Breakdown
	if b.BaseCents != 300_00 || b.ServiceFeeCents != 45_00 || b.InsuranceCents != 30_00 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if b.DeliveryFeeCents != 25_00 || b.TaxCents != 22_40 || b.RentalTotalCents != 422_40 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if b.ChargeCents != 92240 {
		t.Fatalf("charge = %d, want 92240", b.ChargeCents)
	}
}

func TestResumeToleratesAuthorizationLookupFailure(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)

	if _, err := f.svc.Authorize(context.Background(), f.userID, sessionID); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	f.provider.retrieveErr = errors.New("processor unreachable")

	view, err := f.svc.Resume(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if view.Payment == nil || view.Payment.AuthorizationID == "" {
		t.Fatal("expected stored authorization id in view")
	}
	if view.Payment.Status != "" {
		t.Fatalf("status should be empty on lookup failure, got %q", view.Payment.Status)
	}
}

func TestResumeListsSavedCards(t *testing.T) {
	f := newFixture(t)
	f.instruments.cards = []models.PaymentMethod{
		{ID: uuid.New(), UserID: f.userID, Provider: "stripe", ProviderRef: "pm_1"},
		{ID: uuid.New(), UserID: uuid.New(), Provider: "stripe", ProviderRef: "pm_other"},
	}
	sessionID := f.initSession(t)

	view, err := f.svc.Resume(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(view.SavedCards) != 1 || view.SavedCards[0].ProviderRef != "pm_1" {
		t.Fatalf("saved cards = %+v", view.SavedCards)
	}
}

func TestSwapPreservesSelectionsAndReleasesHold(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)
	addOns := []string{"child_seat"}
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{AddOnIDs: &addOns}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := f.svc.Authorize(context.Background(), f.userID, sessionID); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	// The replacement vehicle offers no airport delivery.
	other := exampleVehicle()
	other.ID = uuid.New()
	other.AirportDelivery = false
	other.DailyRateCents = 80_00
	f.vehicles.byID[other.ID] = other

	result, err := f.svc.Swap(context.Background(), f.userID, sessionID, other.ID)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if result.DeliveryKept {
		t.Fatal("delivery should have been cleared")
	}
	if !result.HoldReleased {
		t.Fatal("expected hold release")
	}
	if len(f.releaser.calls) != 1 {
		t.Fatalf("release calls = %v", f.releaser.calls)
	}
	sel := result.Selections
	if sel.InsuranceTier == nil || *sel.InsuranceTier != enums.InsuranceTierBasic {
		t.Fatalf("insurance tier lost: %v", sel.InsuranceTier)
	}
	if len(sel.AddOnIDs) != 1 || sel.AddOnIDs[0] != "child_seat" {
		t.Fatalf("add-ons lost: %v", sel.AddOnIDs)
	}
	if sel.DeliveryType != nil {
		t.Fatalf("delivery should be unset, got %v", sel.DeliveryType)
	}
	if sel.Step != enums.CheckoutStepInsurance {
		t.Fatalf("step = %q, want insurance", sel.Step)
	}

	session, err := f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.AuthorizationID != nil {
		t.Fatal("authorization should be cleared after swap")
	}
	if session.VehicleID != other.ID {
		t.Fatalf("vehicle = %s", session.VehicleID)
	}
	if session.DailyRateAtCheckoutCents != 80_00 {
		t.Fatalf("rate snapshot = %d", session.DailyRateAtCheckoutCents)
	}
}

func TestSwapKeepsAvailableDelivery(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)

	other := exampleVehicle()
	other.ID = uuid.New()
	f.vehicles.byID[other.ID] = other

	result, err := f.svc.Swap(context.Background(), f.userID, sessionID, other.ID)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !result.DeliveryKept {
		t.Fatal("delivery should have been preserved")
	}
	if result.Selections.DeliveryType == nil || *result.Selections.DeliveryType != enums.DeliveryTypeAirport {
		t.Fatalf("delivery = %v", result.Selections.DeliveryType)
	}
	if len(f.releaser.calls) != 0 {
		t.Fatal("no hold existed, nothing to release")
	}
}

func TestUpdateClearsSelectedCardOnExplicitNull(t *testing.T) {
	f := newFixture(t)
	card := models.PaymentMethod{ID: uuid.New(), UserID: f.userID, Provider: "stripe", ProviderRef: "pm_saved"}
	f.instruments.cards = []models.PaymentMethod{card}
	sessionID := f.workedExampleSession(t)
	cardID := card.ID
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{PaymentMethodID: types.NullableUUID{Valid: true, Value: &cardID}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// An absent field leaves the selection alone.
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	session, err := f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.PaymentMethodID == nil || *session.PaymentMethodID != cardID {
		t.Fatalf("selection should survive an untouched patch: %+v", session.PaymentMethodID)
	}

	// An explicit null drops it.
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{PaymentMethodID: types.NullableUUID{Valid: true}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	session, err = f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.PaymentMethodID != nil {
		t.Fatalf("card should have been cleared, got %v", session.PaymentMethodID)
	}
}

func TestAuthorizeUsesSavedInstrument(t *testing.T) {
	f := newFixture(t)
	card := models.PaymentMethod{ID: uuid.New(), UserID: f.userID, Provider: "stripe", ProviderRef: "pm_saved"}
	f.instruments.cards = []models.PaymentMethod{card}
	sessionID := f.workedExampleSession(t)
	cardID := card.ID
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{PaymentMethodID: types.NullableUUID{Valid: true, Value: &cardID}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	result, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !result.Confirmed || result.RequiresAction {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AmountCents != 92240 {
		t.Fatalf("amount = %d", result.AmountCents)
	}
	if len(f.provider.authorizeCalls) != 1 {
		t.Fatalf("authorize calls = %d", len(f.provider.authorizeCalls))
	}
	if f.provider.authorizeCalls[0].InstrumentRef != "pm_saved" {
		t.Fatalf("instrument = %q", f.provider.authorizeCalls[0].InstrumentRef)
	}

	session, err := f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.AuthorizationID == nil || *session.AuthorizationID != result.AuthorizationID {
		t.Fatalf("authorization not stored: %+v", session.AuthorizationID)
	}
}

func TestAuthorizeFallsBackToFreshInstrument(t *testing.T) {
	f := newFixture(t)
	card := models.PaymentMethod{ID: uuid.New(), UserID: f.userID, Provider: "stripe", ProviderRef: "pm_saved"}
	f.instruments.cards = []models.PaymentMethod{card}
	sessionID := f.workedExampleSession(t)
	cardID := card.ID
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{PaymentMethodID: types.NullableUUID{Valid: true, Value: &cardID}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	f.provider.authorizeQueue = []authorizeOutcome{
		{err: pkgerrors.New(pkgerrors.CodePaymentProcessor, "instrument unusable")},
		{auth: &payments.Authorization{ID: "pi_fresh", Status: payments.StatusRequiresAction, ClientSecret: "pi_fresh_secret"}},
	}

	result, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !result.RequiresAction || result.ClientSecret != "pi_fresh_secret" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.provider.authorizeCalls) != 2 {
		t.Fatalf("authorize calls = %d", len(f.provider.authorizeCalls))
	}
	if f.provider.authorizeCalls[0].InstrumentRef != "pm_saved" || f.provider.authorizeCalls[1].InstrumentRef != "" {
		t.Fatalf("fallback did not drop the instrument: %+v", f.provider.authorizeCalls)
	}
}

// fixedIntentClient answers every payment intent call with one canned intent.
type fixedIntentClient struct {
	intent *stripe.PaymentIntent
}

func (c *fixedIntentClient) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return c.intent, nil
}

func (c *fixedIntentClient) Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return c.intent, nil
}

func (c *fixedIntentClient) Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	return c.intent, nil
}

func (c *fixedIntentClient) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return c.intent, nil
}

// A renter with no saved card authorizes against the live Stripe adapter: the
// freshly created intent sits at requires_payment_method and must come back
// as a pending challenge with a client secret, not as a decline.
func TestAuthorizeFreshCardThroughStripeAdapter(t *testing.T) {
	f := newFixture(t)

	intents := &fixedIntentClient{intent: &stripe.PaymentIntent{
		ID:           "pi_new",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "pi_new_secret",
		Amount:       92240,
		Currency:     stripe.CurrencyUSD,
	}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	provider, err := payments.NewStripeProvider(intents, time.Second, logg)
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}
	f.svc.(*service).provider = provider

	sessionID := f.workedExampleSession(t)

	result, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Confirmed || !result.RequiresAction {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AuthorizationID != "pi_new" || result.ClientSecret != "pi_new_secret" {
		t.Fatalf("client secret not surfaced: %+v", result)
	}

	session, err := f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.AuthorizationID == nil || *session.AuthorizationID != "pi_new" {
		t.Fatalf("authorization not stored: %+v", session.AuthorizationID)
	}
}

func TestAuthorizeReusesLiveHold(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)

	first, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	f.provider.retrieveAuth = &payments.Authorization{
		ID:          first.AuthorizationID,
		Status:      payments.StatusAuthorized,
		AmountCents: 92240,
	}

	second, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize again: %v", err)
	}
	if second.AuthorizationID != first.AuthorizationID {
		t.Fatalf("hold replaced: %q vs %q", second.AuthorizationID, first.AuthorizationID)
	}
	if !second.Confirmed {
		t.Fatalf("unexpected result: %+v", second)
	}
	if len(f.provider.authorizeCalls) != 1 {
		t.Fatalf("authorize calls = %d, want 1", len(f.provider.authorizeCalls))
	}
	if len(f.releaser.calls) != 0 {
		t.Fatalf("release calls = %v", f.releaser.calls)
	}
}

func TestAuthorizeConfirmsPendingHoldWithSavedCard(t *testing.T) {
	f := newFixture(t)
	card := models.PaymentMethod{ID: uuid.New(), UserID: f.userID, Provider: "stripe", ProviderRef: "pm_saved"}
	f.instruments.cards = []models.PaymentMethod{card}
	sessionID := f.workedExampleSession(t)

	first, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	cardID := card.ID
	if _, err := f.svc.Update(context.Background(), f.userID, sessionID, UpdateInput{PaymentMethodID: types.NullableUUID{Valid: true, Value: &cardID}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	f.provider.retrieveAuth = &payments.Authorization{
		ID:          first.AuthorizationID,
		Status:      payments.StatusRequiresAction,
		AmountCents: 92240,
	}
	f.provider.confirmAuth = &payments.Authorization{
		ID:          first.AuthorizationID,
		Status:      payments.StatusAuthorized,
		AmountCents: 92240,
	}

	second, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize again: %v", err)
	}
	if !second.Confirmed || second.AuthorizationID != first.AuthorizationID {
		t.Fatalf("unexpected result: %+v", second)
	}
	if len(f.provider.confirmCalls) != 1 || f.provider.confirmCalls[0] != first.AuthorizationID {
		t.Fatalf("confirm calls = %v", f.provider.confirmCalls)
	}
	if len(f.provider.authorizeCalls) != 1 {
		t.Fatalf("authorize calls = %d, want 1", len(f.provider.authorizeCalls))
	}
}

func TestAuthorizeReplacesStaleHold(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)

	first, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	// Amount no longer matches the current quote, so the old hold is let go.
	f.provider.retrieveAuth = &payments.Authorization{
		ID:          first.AuthorizationID,
		Status:      payments.StatusAuthorized,
		AmountCents: 50000,
	}

	second, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize again: %v", err)
	}
	if second.AuthorizationID == first.AuthorizationID {
		t.Fatal("stale hold should have been replaced")
	}
	if len(f.releaser.calls) != 1 || f.releaser.calls[0] != first.AuthorizationID {
		t.Fatalf("release calls = %v", f.releaser.calls)
	}
	if len(f.provider.authorizeCalls) != 2 {
		t.Fatalf("authorize calls = %d, want 2", len(f.provider.authorizeCalls))
	}
}

func TestAuthorizeDeclinedSurfacesProcessorError(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)

	f.provider.authorizeQueue = []authorizeOutcome{
		{auth: &payments.Authorization{ID: "pi_declined", Status: payments.StatusDeclined}},
	}

	_, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if codeOf(t, err) != pkgerrors.CodePaymentProcessor {
		t.Fatalf("expected processor error, got %v", err)
	}
}

func TestConfirmCreatesBookingAndCompletesSession(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)
	auth, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	booking, err := f.svc.Confirm(context.Background(), f.userID, sessionID, auth.AuthorizationID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if booking.Status != enums.BookingStatusConfirmed {
		t.Fatalf("booking status = %q", booking.Status)
	}
	if booking.AuthorizedChargeCents != 92240 {
		t.Fatalf("authorized charge = %d", booking.AuthorizedChargeCents)
	}
	if booking.Breakdown.ChargeCents != 92240 {
		t.Fatalf("frozen breakdown = %+v", booking.Breakdown)
	}

	session, err := f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Status != enums.SessionStatusCompleted {
		t.Fatalf("session status = %q, want completed", session.Status)
	}

	if len(f.outbox.events) != 1 {
		t.Fatalf("outbox events = %d", len(f.outbox.events))
	}
	if f.outbox.events[0].EventType != enums.EventBookingConfirmed {
		t.Fatalf("event type = %q", f.outbox.events[0].EventType)
	}
}

func TestConfirmTwiceIsTerminal(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)
	auth, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if _, err := f.svc.Confirm(context.Background(), f.userID, sessionID, auth.AuthorizationID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err = f.svc.Confirm(context.Background(), f.userID, sessionID, auth.AuthorizationID)
	if codeOf(t, err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestConfirmRequiresHoldingAuthorization(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)

	f.provider.retrieveAuth = &payments.Authorization{ID: "pi_dead", Status: payments.StatusCanceled}
	_, err := f.svc.Confirm(context.Background(), f.userID, sessionID, "pi_dead")
	if codeOf(t, err) != pkgerrors.CodePaymentProcessor {
		t.Fatalf("expected processor error, got %v", err)
	}
}

func TestConfirmConflictReleasesHold(t *testing.T) {
	f := newFixture(t)

	// A rival session books the same window first.
	rivalSession := f.workedExampleSession(t)
	rivalAuth, err := f.svc.Authorize(context.Background(), f.userID, rivalSession)
	if err != nil {
		t.Fatalf("Authorize rival: %v", err)
	}
	if _, err := f.svc.Confirm(context.Background(), f.userID, rivalSession, rivalAuth.AuthorizationID); err != nil {
		t.Fatalf("Confirm rival: %v", err)
	}

	sessionID := f.workedExampleSession(t)
	auth, err := f.svc.Authorize(context.Background(), f.userID, sessionID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	_, err = f.svc.Confirm(context.Background(), f.userID, sessionID, auth.AuthorizationID)
	if codeOf(t, err) != pkgerrors.CodeAvailabilityConflict {
		t.Fatalf("expected availability conflict, got %v", err)
	}
	if !strings.Contains(pkgerrors.As(err).Message(), "hold has been released") {
		t.Fatalf("message must state the hold was released, got %q", pkgerrors.As(err).Message())
	}
	if len(f.releaser.calls) != 1 || f.releaser.calls[0] != auth.AuthorizationID {
		t.Fatalf("release calls = %v", f.releaser.calls)
	}

	// The losing session must remain usable state-wise (still active).
	session, err := f.sessions.FindByID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Status != enums.SessionStatusActive {
		t.Fatalf("loser session status = %q, want active", session.Status)
	}

	var conflictEvents int
	for _, event := range f.outbox.events {
		if event.EventType == enums.EventBookingConflictLost {
			conflictEvents++
		}
	}
	if conflictEvents != 1 {
		t.Fatalf("conflict events = %d", conflictEvents)
	}
}

// Two renters race the same window: both pass the overlap check inside their
// own serializable transaction and exactly one commit survives. The loser is
// aborted at COMMIT, keeps an active session, and gets its hold released.
func TestConfirmSerializationAbortLosesRace(t *testing.T) {
	f := newFixture(t)

	loserSession := f.workedExampleSession(t)
	loserAuth, err := f.svc.Authorize(context.Background(), f.userID, loserSession)
	if err != nil {
		t.Fatalf("Authorize loser: %v", err)
	}
	winnerSession := f.workedExampleSession(t)
	winnerAuth, err := f.svc.Authorize(context.Background(), f.userID, winnerSession)
	if err != nil {
		t.Fatalf("Authorize winner: %v", err)
	}

	f.svc.(*service).tx = &commitAbortTxRunner{inner: &gormTxRunner{db: f.db}, aborts: 1}

	_, err = f.svc.Confirm(context.Background(), f.userID, loserSession, loserAuth.AuthorizationID)
	if codeOf(t, err) != pkgerrors.CodeAvailabilityConflict {
		t.Fatalf("expected availability conflict, got %v", err)
	}
	if len(f.releaser.calls) != 1 || f.releaser.calls[0] != loserAuth.AuthorizationID {
		t.Fatalf("release calls = %v", f.releaser.calls)
	}

	// The aborted commit must leave nothing behind.
	var count int64
	if err := f.db.Model(&models.Booking{}).Count(&count).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if count != 0 {
		t.Fatalf("bookings after aborted commit = %d", count)
	}
	session, err := f.sessions.FindByID(context.Background(), loserSession)
	if err != nil {
		t.Fatalf("load loser session: %v", err)
	}
	if session.Status != enums.SessionStatusActive {
		t.Fatalf("loser session status = %q, want active", session.Status)
	}

	booking, err := f.svc.Confirm(context.Background(), f.userID, winnerSession, winnerAuth.AuthorizationID)
	if err != nil {
		t.Fatalf("Confirm winner: %v", err)
	}
	if booking.SessionID != winnerSession {
		t.Fatalf("winning booking belongs to %s", booking.SessionID)
	}
	if err := f.db.Model(&models.Booking{}).Count(&count).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if count != 1 {
		t.Fatalf("bookings after race = %d", count)
	}
}

func TestConfirmRejectsMismatchedAuthorization(t *testing.T) {
	f := newFixture(t)
	sessionID := f.workedExampleSession(t)
	if _, err := f.svc.Authorize(context.Background(), f.userID, sessionID); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	_, err := f.svc.Confirm(context.Background(), f.userID, sessionID, "pi_someone_elses")
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
