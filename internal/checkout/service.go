package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/internal/bookings"
	"github.com/calebreyes/driveshare-backend/internal/payments"
	"github.com/calebreyes/driveshare-backend/internal/pricing"
	"github.com/calebreyes/driveshare-backend/pkg/db"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/outbox"
	"github.com/calebreyes/driveshare-backend/pkg/outbox/payloads"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type vehicleLoader interface {
	GetBookable(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
}

type walletService interface {
	Balances(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	ValidatePromo(ctx context.Context, code string, now time.Time) (*models.PromoCode, error)
}

type instrumentStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error)
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.PaymentMethod, error)
}

type holdReleaser interface {
	Release(ctx context.Context, authorizationID, reason string) bool
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InitInput opens a checkout session for a vehicle and date window.
type InitInput struct {
	VehicleID uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

// UpdateInput is a partial patch; nil fields are left untouched. An empty
// promo code string clears the stored code, and an explicit null payment
// method clears the selected card.
type UpdateInput struct {
	Step            *enums.CheckoutStep
	InsuranceTier   *enums.InsuranceTier
	DeliveryType    *enums.DeliveryType
	AddOnIDs        *[]string
	PaymentMethodID types.NullableUUID

	AppliedCreditCents        *int64
	AppliedBonusCents         *int64
	AppliedDepositWalletCents *int64
	PromoCode                 *string
}

// Service orchestrates the checkout session lifecycle.
type Service interface {
	Init(ctx context.Context, userID uuid.UUID, in InitInput) (*InitResult, error)
	Update(ctx context.Context, userID, sessionID uuid.UUID, in UpdateInput) (*UpdateResult, error)
	Resume(ctx context.Context, userID, sessionID uuid.UUID) (*SessionView, error)
	Swap(ctx context.Context, userID, sessionID, newVehicleID uuid.UUID) (*SwapResult, error)
	Authorize(ctx context.Context, userID, sessionID uuid.UUID) (*AuthorizeResult, error)
	Confirm(ctx context.Context, userID, sessionID uuid.UUID, authorizationID string) (*models.Booking, error)
}

type service struct {
	tx          txRunner
	sessions    *Repository
	vehicles    vehicleLoader
	wallet      walletService
	instruments instrumentStore
	provider    payments.Provider
	comp        holdReleaser
	outbox      outboxPublisher
	logg        *logger.Logger

	ttl time.Duration
	now func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(
	tx txRunner,
	sessions *Repository,
	vehicles vehicleLoader,
	wallet walletService,
	instruments instrumentStore,
	provider payments.Provider,
	comp holdReleaser,
	publisher outboxPublisher,
	logg *logger.Logger,
	ttl time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if vehicles == nil {
		return nil, fmt.Errorf("vehicle loader required")
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if instruments == nil {
		return nil, fmt.Errorf("instrument store required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if comp == nil {
		return nil, fmt.Errorf("compensator required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &service{
		tx:          tx,
		sessions:    sessions,
		vehicles:    vehicles,
		wallet:      wallet,
		instruments: instruments,
		provider:    provider,
		comp:        comp,
		outbox:      publisher,
		logg:        logg,
		ttl:         ttl,
		now:         time.Now,
	}, nil
}

func (s *service) Init(ctx context.Context, userID uuid.UUID, in InitInput) (*InitResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	days, err := pricing.DaysBetween(in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.GetBookable(ctx, in.VehicleID)
	if err != nil {
		return nil, err
	}

	balances, err := s.wallet.Balances(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.CheckoutSession{
		ID:                       uuid.New(),
		UserID:                   userID,
		VehicleID:                vehicle.ID,
		StartDate:                in.StartDate,
		EndDate:                  in.EndDate,
		Step:                     enums.CheckoutStepInsurance,
		Status:                   enums.SessionStatusActive,
		AddOnIDs:                 pq.StringArray{},
		DailyRateAtCheckoutCents: vehicle.DailyRateCents,
		ExpiresAt:                now.Add(s.ttl),
		Version:                  1,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	ctx = s.logg.WithSessionID(ctx, session.ID.String())
	s.logg.Info(ctx, "checkout session opened")

	return &InitResult{
		SessionID:    session.ID,
		ExpiresAt:    session.ExpiresAt,
		Days:         days,
		Catalogs:     buildCatalogs(vehicle, days),
		DepositCents: vehicle.DepositCents,
		Balances:     balances,
	}, nil
}

func (s *service) Update(ctx context.Context, userID, sessionID uuid.UUID, in UpdateInput) (*UpdateResult, error) {
	session, err := s.loadOwnedActive(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicles.GetBookable(ctx, session.VehicleID)
	if err != nil {
		return nil, err
	}

	if err := s.applyPatch(ctx, session, vehicle, in); err != nil {
		return nil, err
	}

	s.touch(session)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	return &UpdateResult{
		SessionID:  session.ID,
		ExpiresAt:  session.ExpiresAt,
		Version:    session.Version,
		PriceDrift: driftFor(session, vehicle),
	}, nil
}

func (s *service) Resume(ctx context.Context, userID, sessionID uuid.UUID) (*SessionView, error) {
	session, err := s.loadOwnedActive(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicles.GetBookable(ctx, session.VehicleID)
	if err != nil {
		return nil, err
	}

	days, err := pricing.DaysBetween(session.StartDate, session.EndDate)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.quote(ctx, session, vehicle, false)
	if err != nil {
		return nil, err
	}

	cards, err := s.instruments.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list saved cards")
	}

	view := &SessionView{
		SessionID:  session.ID,
		VehicleID:  session.VehicleID,
		StartDate:  session.StartDate,
		EndDate:    session.EndDate,
		ExpiresAt:  session.ExpiresAt,
		Version:    session.Version,
		Selections: selectionsOf(session),
		Catalogs:   buildCatalogs(vehicle, days),
		Breakdown:  breakdown,
		PriceDrift: driftFor(session, vehicle),
		SavedCards: cards,
	}

	if session.AuthorizationID != nil {
		view.Payment = &PaymentState{AuthorizationID: *session.AuthorizationID}
		auth, err := s.provider.RetrieveStatus(ctx, *session.AuthorizationID)
		if err != nil {
			// Resume still returns the rest of the state when the
			// processor lookup fails.
			s.logg.Warn(s.logg.WithSessionID(ctx, session.ID.String()), "authorization status lookup failed on resume")
		} else {
			view.Payment.Status = string(auth.Status)
			view.Payment.ClientSecret = auth.ClientSecret
		}
	}

	return view, nil
}

func (s *service) Swap(ctx context.Context, userID, sessionID, newVehicleID uuid.UUID) (*SwapResult, error) {
	session, err := s.loadOwnedActive(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicles.GetBookable(ctx, newVehicleID)
	if err != nil {
		return nil, err
	}

	days, err := pricing.DaysBetween(session.StartDate, session.EndDate)
	if err != nil {
		return nil, err
	}

	// Insurance tiers and add-ons are vehicle-agnostic and survive the swap.
	// The delivery selection survives only if the new vehicle offers it.
	deliveryKept := true
	if session.DeliveryType != nil && !deliveryAvailable(vehicle, *session.DeliveryType) {
		session.DeliveryType = nil
		deliveryKept = false
	}

	holdReleased := false
	if session.AuthorizationID != nil {
		// The authorized amount no longer matches anything; release it.
		holdReleased = s.comp.Release(ctx, *session.AuthorizationID, "vehicle_swap")
		session.AuthorizationID = nil
	}

	session.VehicleID = vehicle.ID
	session.DailyRateAtCheckoutCents = vehicle.DailyRateCents
	session.Step = enums.CheckoutStepInsurance
	s.touch(session)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	return &SwapResult{
		SessionID:      session.ID,
		VehicleID:      vehicle.ID,
		ExpiresAt:      session.ExpiresAt,
		Catalogs:       buildCatalogs(vehicle, days),
		Selections:     selectionsOf(session),
		HoldReleased:   holdReleased,
		DeliveryKept:   deliveryKept,
		DepositCents:   vehicle.DepositCents,
		DailyRateCents: vehicle.DailyRateCents,
	}, nil
}

func (s *service) Authorize(ctx context.Context, userID, sessionID uuid.UUID) (*AuthorizeResult, error) {
	session, err := s.loadOwnedActive(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicles.GetBookable(ctx, session.VehicleID)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.quote(ctx, session, vehicle, true)
	if err != nil {
		return nil, err
	}

	instrumentRef := ""
	if session.PaymentMethodID != nil {
		method, err := s.instruments.FindForUser(ctx, *session.PaymentMethodID, userID)
		if err != nil {
			return nil, err
		}
		instrumentRef = method.ProviderRef
	}

	result, reused, err := s.reuseAuthorization(ctx, session, breakdown.ChargeCents, instrumentRef)
	if err != nil {
		return nil, err
	}
	if reused {
		return result, nil
	}

	in := payments.AuthorizeInput{
		AmountCents:    breakdown.ChargeCents,
		Currency:       string(enums.CurrencyUSD),
		InstrumentRef:  instrumentRef,
		IdempotencyKey: fmt.Sprintf("checkout-%s-%d", session.ID, session.Version),
		Description:    fmt.Sprintf("rental checkout %s", session.ID),
	}
	auth, err := s.provider.Authorize(ctx, in)
	if err != nil && instrumentRef != "" {
		// A failing saved-instrument confirmation falls back to fresh card
		// entry instead of surfacing the failure.
		s.logg.Warn(s.logg.WithSessionID(ctx, session.ID.String()), "saved instrument authorization failed, retrying without instrument")
		in.InstrumentRef = ""
		in.IdempotencyKey = fmt.Sprintf("checkout-%s-%d-fresh", session.ID, session.Version)
		auth, err = s.provider.Authorize(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	switch auth.Status {
	case payments.StatusAuthorized, payments.StatusRequiresAction:
	default:
		return nil, pkgerrors.New(pkgerrors.CodePaymentProcessor, "payment authorization was declined")
	}

	session.AuthorizationID = &auth.ID
	s.touch(session)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	return &AuthorizeResult{
		AuthorizationID: auth.ID,
		Confirmed:       auth.Status == payments.StatusAuthorized,
		RequiresAction:  auth.Status == payments.StatusRequiresAction,
		ClientSecret:    auth.ClientSecret,
		AmountCents:     breakdown.ChargeCents,
	}, nil
}

// reuseAuthorization resolves a previously stored hold before a new one is
// created. A live hold for the same amount is returned as-is; a pending
// challenge is confirmed with the selected instrument when one exists. Stale
// or mismatched holds are released so the session never carries two.
func (s *service) reuseAuthorization(ctx context.Context, session *models.CheckoutSession, amountCents int64, instrumentRef string) (*AuthorizeResult, bool, error) {
	if session.AuthorizationID == nil {
		return nil, false, nil
	}
	existingID := *session.AuthorizationID

	existing, err := s.provider.RetrieveStatus(ctx, existingID)
	if err != nil || existing.Status.Terminal() || existing.AmountCents != amountCents {
		if err != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, session.ID.String()), "stored authorization lookup failed, reauthorizing")
		}
		s.comp.Release(ctx, existingID, "superseded_authorization")
		return nil, false, nil
	}

	auth := existing
	if existing.Status == payments.StatusRequiresAction && instrumentRef != "" {
		confirmed, cerr := s.provider.ConfirmWithInstrument(ctx, existingID, instrumentRef)
		if cerr != nil {
			s.comp.Release(ctx, existingID, "superseded_authorization")
			return nil, false, nil
		}
		auth = confirmed
	}

	switch auth.Status {
	case payments.StatusAuthorized, payments.StatusRequiresAction:
	default:
		s.comp.Release(ctx, existingID, "superseded_authorization")
		return nil, false, nil
	}

	s.touch(session)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return &AuthorizeResult{
		AuthorizationID: auth.ID,
		Confirmed:       auth.Status == payments.StatusAuthorized,
		RequiresAction:  auth.Status == payments.StatusRequiresAction,
		ClientSecret:    auth.ClientSecret,
		AmountCents:     amountCents,
	}, true, nil
}

func (s *service) Confirm(ctx context.Context, userID, sessionID uuid.UUID, authorizationID string) (*models.Booking, error) {
	session, err := s.loadOwnedActive(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if authorizationID == "" && session.AuthorizationID != nil {
		authorizationID = *session.AuthorizationID
	}
	if authorizationID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment authorization is required")
	}
	if session.AuthorizationID != nil && *session.AuthorizationID != authorizationID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization does not belong to this session")
	}

	auth, err := s.provider.RetrieveStatus(ctx, authorizationID)
	if err != nil {
		return nil, err
	}
	if !auth.Status.Holds() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentProcessor, "payment authorization is not holding funds")
	}

	vehicle, err := s.vehicles.GetBookable(ctx, session.VehicleID)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.quote(ctx, session, vehicle, true)
	if err != nil {
		return nil, err
	}
	if auth.AmountCents != 0 && auth.AmountCents != breakdown.ChargeCents {
		s.logg.Warn(s.logg.WithSessionID(ctx, session.ID.String()), fmt.Sprintf("authorized amount %d differs from recomputed charge %d", auth.AmountCents, breakdown.ChargeCents))
	}

	var booking *models.Booking
	err = s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		created, err := bookings.Reserve(ctx, tx, bookings.ReservationRequest{
			SessionID:             session.ID,
			VehicleID:             session.VehicleID,
			RenterID:              session.UserID,
			StartDate:             session.StartDate,
			EndDate:               session.EndDate,
			Currency:              enums.CurrencyUSD,
			AuthorizationID:       authorizationID,
			AuthorizedChargeCents: breakdown.ChargeCents,
			Breakdown:             *breakdown,
		})
		if err != nil {
			return err
		}

		completed, err := s.sessions.WithTx(tx).MarkCompleted(ctx, session.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete checkout session")
		}
		if !completed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "session already produced a booking")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventBookingConfirmed,
			AggregateType: enums.AggregateBooking,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: session.UserID.String(), Role: string(enums.UserRoleGuest)},
			Data: payloads.BookingConfirmedEvent{
				BookingID:             created.ID,
				SessionID:             session.ID,
				VehicleID:             session.VehicleID,
				RenterID:              session.UserID,
				HostID:                vehicle.HostID,
				StartDate:             session.StartDate,
				EndDate:               session.EndDate,
				AuthorizedChargeCents: created.AuthorizedChargeCents,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		booking = created
		return nil
	})
	if err != nil {
		if isAvailabilityConflict(err) {
			return nil, s.loseConflict(ctx, session, authorizationID)
		}
		return nil, err
	}

	ctx = s.logg.WithSessionID(ctx, session.ID.String())
	s.logg.Info(ctx, "booking confirmed")
	return booking, nil
}

// loseConflict releases the hold of a confirm attempt that lost the
// availability race and builds the caller-facing conflict error.
func (s *service) loseConflict(ctx context.Context, session *models.CheckoutSession, authorizationID string) error {
	released := s.comp.Release(ctx, authorizationID, "availability_conflict")

	event := outbox.DomainEvent{
		EventType:     enums.EventBookingConflictLost,
		AggregateType: enums.AggregateCheckoutSession,
		AggregateID:   session.ID,
		Actor:         &outbox.ActorRef{UserID: session.UserID.String(), Role: string(enums.UserRoleGuest)},
		Data: payloads.BookingConflictLostEvent{
			SessionID:    session.ID,
			VehicleID:    session.VehicleID,
			RenterID:     session.UserID,
			StartDate:    session.StartDate,
			EndDate:      session.EndDate,
			HoldReleased: released,
		},
		Version: 1,
	}
	if emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, event)
	}); emitErr != nil {
		s.logg.Error(ctx, "failed to record lost availability race", emitErr)
	}

	if released {
		return pkgerrors.New(pkgerrors.CodeAvailabilityConflict, "the requested dates are no longer available; your payment hold has been released")
	}
	return pkgerrors.New(pkgerrors.CodeAvailabilityConflict, "the requested dates are no longer available; releasing your payment hold is still in progress")
}

func (s *service) loadOwnedActive(ctx context.Context, sessionID, userID uuid.UUID) (*models.CheckoutSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another user")
	}
	switch session.Status {
	case enums.SessionStatusCompleted:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session already completed")
	case enums.SessionStatusExpired:
		return nil, pkgerrors.New(pkgerrors.CodeSessionExpired, "checkout session expired")
	}
	if session.Expired(s.now()) {
		if _, err := s.sessions.MarkExpired(ctx, session.ID); err != nil {
			s.logg.Error(ctx, "failed to lazily expire session", err)
		}
		return nil, pkgerrors.New(pkgerrors.CodeSessionExpired, "checkout session expired")
	}
	return session, nil
}

func (s *service) applyPatch(ctx context.Context, session *models.CheckoutSession, vehicle *models.Vehicle, in UpdateInput) error {
	if in.Step != nil {
		if !in.Step.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout step")
		}
		session.Step = *in.Step
	}
	if in.InsuranceTier != nil {
		if !in.InsuranceTier.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown insurance tier")
		}
		tier := *in.InsuranceTier
		session.InsuranceTier = &tier
	}
	if in.DeliveryType != nil {
		if !deliveryAvailable(vehicle, *in.DeliveryType) {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery mode not offered by this vehicle")
		}
		deliveryType := *in.DeliveryType
		session.DeliveryType = &deliveryType
	}
	if in.AddOnIDs != nil {
		seen := map[string]bool{}
		for _, id := range *in.AddOnIDs {
			if _, ok := pricing.FindAddOn(id); !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown add-on %q", id))
			}
			if seen[id] {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate add-on %q", id))
			}
			seen[id] = true
		}
		session.AddOnIDs = pq.StringArray(append([]string{}, (*in.AddOnIDs)...))
	}
	if in.PaymentMethodID.Valid {
		if in.PaymentMethodID.Value == nil {
			session.PaymentMethodID = nil
		} else {
			if _, err := s.instruments.FindForUser(ctx, *in.PaymentMethodID.Value, session.UserID); err != nil {
				return err
			}
			id := *in.PaymentMethodID.Value
			session.PaymentMethodID = &id
		}
	}

	if in.AppliedCreditCents != nil || in.AppliedBonusCents != nil || in.AppliedDepositWalletCents != nil {
		balances, err := s.wallet.Balances(ctx, session.UserID)
		if err != nil {
			return err
		}
		if in.AppliedCreditCents != nil {
			if err := validateApplied(*in.AppliedCreditCents, balances.CreditCents, "credit"); err != nil {
				return err
			}
			session.AppliedCreditCents = *in.AppliedCreditCents
		}
		if in.AppliedBonusCents != nil {
			if err := validateApplied(*in.AppliedBonusCents, balances.BonusCents, "bonus"); err != nil {
				return err
			}
			session.AppliedBonusCents = *in.AppliedBonusCents
		}
		if in.AppliedDepositWalletCents != nil {
			if err := validateApplied(*in.AppliedDepositWalletCents, balances.DepositWalletCents, "deposit wallet"); err != nil {
				return err
			}
			session.AppliedDepositWalletCents = *in.AppliedDepositWalletCents
		}
	}

	if in.PromoCode != nil {
		code := *in.PromoCode
		if code == "" {
			session.PromoCode = nil
		} else {
			if _, err := s.wallet.ValidatePromo(ctx, code, s.now()); err != nil {
				return err
			}
			session.PromoCode = &code
		}
	}
	return nil
}

// quote recomputes the full breakdown from current server state. When strict
// is false a promo code that stopped validating contributes zero instead of
// failing the read.
func (s *service) quote(ctx context.Context, session *models.CheckoutSession, vehicle *models.Vehicle, strict bool) (*types.PriceBreakdown, error) {
	days, err := pricing.DaysBetween(session.StartDate, session.EndDate)
	if err != nil {
		return nil, err
	}

	var promoCents int64
	if session.PromoCode != nil {
		promo, err := s.wallet.ValidatePromo(ctx, *session.PromoCode, s.now())
		if err != nil {
			if strict {
				return nil, err
			}
		} else {
			promoCents = promo.DiscountCents
		}
	}

	return pricing.Quote(pricing.QuoteInput{
		Vehicle:            vehicle,
		Days:               days,
		InsuranceTier:      session.InsuranceTier,
		DeliveryType:       session.DeliveryType,
		AddOnIDs:           []string(session.AddOnIDs),
		CreditCents:        session.AppliedCreditCents,
		BonusCents:         session.AppliedBonusCents,
		PromoCents:         promoCents,
		DepositWalletCents: session.AppliedDepositWalletCents,
	})
}

func (s *service) touch(session *models.CheckoutSession) {
	session.ExpiresAt = s.now().Add(s.ttl)
	session.Version++
}

func validateApplied(amount, available int64, label string) error {
	if amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("applied %s cannot be negative", label))
	}
	if amount > available {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("applied %s exceeds available balance", label))
	}
	return nil
}

func buildCatalogs(vehicle *models.Vehicle, days int) Catalogs {
	return Catalogs{
		Insurance: pricing.InsuranceCatalog(vehicle, days),
		Delivery:  pricing.DeliveryCatalog(vehicle),
		AddOns:    pricing.AddOnCatalog(),
	}
}

func deliveryAvailable(vehicle *models.Vehicle, deliveryType enums.DeliveryType) bool {
	for _, option := range pricing.DeliveryCatalog(vehicle) {
		if option.Type == deliveryType {
			return true
		}
	}
	return false
}

func selectionsOf(session *models.CheckoutSession) Selections {
	return Selections{
		Step:                      session.Step,
		InsuranceTier:             session.InsuranceTier,
		DeliveryType:              session.DeliveryType,
		AddOnIDs:                  append([]string{}, session.AddOnIDs...),
		PaymentMethodID:           session.PaymentMethodID,
		AppliedCreditCents:        session.AppliedCreditCents,
		AppliedBonusCents:         session.AppliedBonusCents,
		AppliedDepositWalletCents: session.AppliedDepositWalletCents,
		PromoCode:                 session.PromoCode,
	}
}

func driftFor(session *models.CheckoutSession, vehicle *models.Vehicle) *types.PriceDrift {
	if session.DailyRateAtCheckoutCents == vehicle.DailyRateCents {
		return nil
	}
	return &types.PriceDrift{
		OldDailyRateCents: session.DailyRateAtCheckoutCents,
		NewDailyRateCents: vehicle.DailyRateCents,
	}
}

func isAvailabilityConflict(err error) bool {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeAvailabilityConflict {
		return true
	}
	return db.IsSerializationFailure(err)
}
