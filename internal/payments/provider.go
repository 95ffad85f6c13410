package payments

import (
	"context"
	"strings"

	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
)

// Status is the provider-neutral state of a payment authorization.
type Status string

const (
	// StatusAuthorized means funds are held and the charge can be captured later.
	StatusAuthorized Status = "authorized"
	// StatusRequiresAction means the payer must complete a challenge (3DS etc.)
	// before the hold is placed.
	StatusRequiresAction Status = "requires_action"
	StatusDeclined       Status = "declined"
	StatusCanceled       Status = "canceled"
	StatusCaptured       Status = "captured"
	StatusUnknown        Status = "unknown"
)

// Holds reports whether the authorization currently reserves funds.
func (s Status) Holds() bool {
	return s == StatusAuthorized
}

// Terminal reports whether the authorization can no longer change state
// without a new payment attempt.
func (s Status) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCanceled, StatusCaptured:
		return true
	default:
		return false
	}
}

// Authorization is the provider-neutral view of a payment hold.
type Authorization struct {
	ID     string
	Status Status
	// ClientSecret is set when the payer must finish a challenge client-side.
	ClientSecret string
	AmountCents  int64
	Currency     string
}

// AuthorizeInput describes a manual-capture authorization request.
type AuthorizeInput struct {
	AmountCents    int64
	Currency       string
	CustomerRef    string
	InstrumentRef  string
	IdempotencyKey string
	Description    string
}

func (in AuthorizeInput) validate() error {
	if in.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "authorization amount must be positive")
	}
	if strings.TrimSpace(in.Currency) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "authorization currency is required")
	}
	return nil
}

// Provider places, confirms, and releases manual-capture payment holds.
// Implementations never capture funds; capture happens after the rental
// completes, outside checkout.
type Provider interface {
	Name() string
	Authorize(ctx context.Context, in AuthorizeInput) (*Authorization, error)
	ConfirmWithInstrument(ctx context.Context, authorizationID, instrumentRef string) (*Authorization, error)
	Cancel(ctx context.Context, authorizationID string) error
	RetrieveStatus(ctx context.Context, authorizationID string) (*Authorization, error)
}
