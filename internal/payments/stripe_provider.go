package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	pkgstripe "github.com/calebreyes/driveshare-backend/pkg/stripe"
)

// StripeIntentClient exposes the subset of Stripe payment-intent operations
// the provider needs, so it can be stubbed in tests.
type StripeIntentClient interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeIntentWrapper struct{}

// NewStripeIntentClient wraps the initialized Stripe client. The wrapper uses
// the package-level API, which reads the global key set by pkg/stripe.
func NewStripeIntentClient(api *pkgstripe.Client) StripeIntentClient {
	if api == nil {
		return nil
	}
	return &stripeIntentWrapper{}
}

func (w *stripeIntentWrapper) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (w *stripeIntentWrapper) Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Confirm(id, params)
}

func (w *stripeIntentWrapper) Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Cancel(id, params)
}

func (w *stripeIntentWrapper) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Get(id, params)
}

type stripeProvider struct {
	intents StripeIntentClient
	timeout time.Duration
	logg    *logger.Logger
}

// NewStripeProvider builds the Stripe manual-capture adapter.
func NewStripeProvider(intents StripeIntentClient, timeout time.Duration, logg *logger.Logger) (Provider, error) {
	if intents == nil {
		return nil, errors.New("stripe intent client is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &stripeProvider{intents: intents, timeout: timeout, logg: logg}, nil
}

func (p *stripeProvider) Name() string { return "stripe" }

func (p *stripeProvider) Authorize(ctx context.Context, in AuthorizeInput) (*Authorization, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(in.AmountCents),
		Currency:      stripe.String(strings.ToLower(in.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	if in.CustomerRef != "" {
		params.Customer = stripe.String(in.CustomerRef)
	}
	if in.InstrumentRef != "" {
		params.PaymentMethod = stripe.String(in.InstrumentRef)
		params.Confirm = stripe.Bool(true)
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	intent, err := p.intents.Create(callCtx, params)
	if err != nil {
		return nil, p.mapStripeError(ctx, err, "create payment intent")
	}
	return authorizationFromIntent(intent), nil
}

func (p *stripeProvider) ConfirmWithInstrument(ctx context.Context, authorizationID, instrumentRef string) (*Authorization, error) {
	if strings.TrimSpace(authorizationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization id is required")
	}
	if strings.TrimSpace(instrumentRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment instrument is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	intent, err := p.intents.Confirm(callCtx, authorizationID, &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(instrumentRef),
	})
	if err != nil {
		return nil, p.mapStripeError(ctx, err, "confirm payment intent")
	}
	return authorizationFromIntent(intent), nil
}

func (p *stripeProvider) Cancel(ctx context.Context, authorizationID string) error {
	if strings.TrimSpace(authorizationID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "authorization id is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.intents.Cancel(callCtx, authorizationID, &stripe.PaymentIntentCancelParams{}); err != nil {
		return p.mapStripeError(ctx, err, "cancel payment intent")
	}
	return nil
}

func (p *stripeProvider) RetrieveStatus(ctx context.Context, authorizationID string) (*Authorization, error) {
	if strings.TrimSpace(authorizationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization id is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	intent, err := p.intents.Get(callCtx, authorizationID, &stripe.PaymentIntentParams{})
	if err != nil {
		return nil, p.mapStripeError(ctx, err, "retrieve payment intent")
	}
	return authorizationFromIntent(intent), nil
}

func (p *stripeProvider) mapStripeError(ctx context.Context, err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		ctx = p.logg.WithField(ctx, "stripe_code", string(stripeErr.Code))
		p.logg.Warn(ctx, fmt.Sprintf("stripe %s rejected", op))
		if stripeErr.Type == stripe.ErrorTypeCard {
			return pkgerrors.Wrap(pkgerrors.CodePaymentProcessor, err, stripeErr.Msg)
		}
		return pkgerrors.Wrap(pkgerrors.CodePaymentProcessor, err, fmt.Sprintf("stripe %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

func authorizationFromIntent(intent *stripe.PaymentIntent) *Authorization {
	if intent == nil {
		return &Authorization{Status: StatusUnknown}
	}
	return &Authorization{
		ID:           intent.ID,
		Status:       statusFromIntent(intent.Status),
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
	}
}

func statusFromIntent(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return StatusAuthorized
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return StatusRequiresAction
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// Initial status of an unconfirmed intent: the payer still has to
		// attach a card client-side using the client secret. Declined
		// confirmations surface as card errors, not as this status.
		return StatusRequiresAction
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCaptured
	default:
		return StatusUnknown
	}
}
