package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/square"
)

// SquarePaymentsClient is the slice of pkg/square the provider depends on.
type SquarePaymentsClient interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

type squareProvider struct {
	client     SquarePaymentsClient
	locationID string
	timeout    time.Duration
	logg       *logger.Logger
}

// NewSquareProvider builds the Square manual-capture adapter. Square places
// the hold via a delayed-capture payment (autocomplete off).
func NewSquareProvider(client SquarePaymentsClient, locationID string, timeout time.Duration, logg *logger.Logger) (Provider, error) {
	if client == nil {
		return nil, errors.New("square client is required")
	}
	if strings.TrimSpace(locationID) == "" {
		return nil, errors.New("square location id is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &squareProvider{client: client, locationID: locationID, timeout: timeout, logg: logg}, nil
}

func (p *squareProvider) Name() string { return "square" }

func (p *squareProvider) Authorize(ctx context.Context, in AuthorizeInput) (*Authorization, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	// Square has no deferred-confirmation flow; the instrument must be
	// supplied when the hold is placed.
	if strings.TrimSpace(in.InstrumentRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square authorizations require a payment instrument")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payment, err := p.client.CreatePayment(callCtx, square.PaymentCreateParams{
		AmountCents:    in.AmountCents,
		Currency:       strings.ToUpper(in.Currency),
		LocationID:     p.locationID,
		CustomerID:     in.CustomerRef,
		SourceID:       in.InstrumentRef,
		IdempotencyKey: in.IdempotencyKey,
		Note:           in.Description,
		Autocomplete:   false,
	})
	if err != nil {
		return nil, err
	}
	return authorizationFromSquarePayment(payment), nil
}

func (p *squareProvider) ConfirmWithInstrument(ctx context.Context, authorizationID, instrumentRef string) (*Authorization, error) {
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "square authorizations are confirmed when placed")
}

func (p *squareProvider) Cancel(ctx context.Context, authorizationID string) error {
	if strings.TrimSpace(authorizationID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "authorization id is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.CancelPayment(callCtx, authorizationID)
	return err
}

func (p *squareProvider) RetrieveStatus(ctx context.Context, authorizationID string) (*Authorization, error) {
	if strings.TrimSpace(authorizationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization id is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payment, err := p.client.GetPayment(callCtx, authorizationID)
	if err != nil {
		return nil, err
	}
	return authorizationFromSquarePayment(payment), nil
}

func authorizationFromSquarePayment(payment *sq.Payment) *Authorization {
	if payment == nil {
		return &Authorization{Status: StatusUnknown}
	}

	auth := &Authorization{Status: statusFromSquarePayment(payment)}
	if id := payment.GetID(); id != nil {
		auth.ID = *id
	}
	if money := payment.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			auth.AmountCents = *amount
		}
		if currency := money.GetCurrency(); currency != nil {
			auth.Currency = string(*currency)
		}
	}
	return auth
}

func statusFromSquarePayment(payment *sq.Payment) Status {
	status := payment.GetStatus()
	if status == nil {
		return StatusUnknown
	}
	switch strings.ToUpper(*status) {
	case "APPROVED":
		return StatusAuthorized
	case "COMPLETED":
		return StatusCaptured
	case "CANCELED":
		return StatusCanceled
	case "FAILED":
		return StatusDeclined
	case "PENDING":
		return StatusRequiresAction
	default:
		return StatusUnknown
	}
}
