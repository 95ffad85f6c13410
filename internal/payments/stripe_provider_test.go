package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
)

type stubIntentClient struct {
	createParams  *stripe.PaymentIntentParams
	confirmID     string
	confirmParams *stripe.PaymentIntentConfirmParams
	cancelID      string
	getID         string

	intent *stripe.PaymentIntent
	err    error
}

func (s *stubIntentClient) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.createParams = params
	return s.intent, s.err
}

func (s *stubIntentClient) Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	s.confirmID = id
	s.confirmParams = params
	return s.intent, s.err
}

func (s *stubIntentClient) Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	s.cancelID = id
	return s.intent, s.err
}

func (s *stubIntentClient) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.getID = id
	return s.intent, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newStripeProviderForTest(t *testing.T, stub *stubIntentClient) Provider {
	t.Helper()
	provider, err := NewStripeProvider(stub, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}
	return provider
}

func TestStripeAuthorizePlacesManualCaptureHold(t *testing.T) {
	stub := &stubIntentClient{intent: &stripe.PaymentIntent{
		ID:       "pi_123",
		Status:   stripe.PaymentIntentStatusRequiresCapture,
		Amount:   92240,
		Currency: stripe.CurrencyUSD,
	}}
	provider := newStripeProviderForTest(t, stub)

	auth, err := provider.Authorize(context.Background(), AuthorizeInput{
		AmountCents:    92240,
		Currency:       "USD",
		CustomerRef:    "cus_9",
		InstrumentRef:  "pm_card",
		IdempotencyKey: "chk-1",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.ID != "pi_123" || auth.Status != StatusAuthorized {
		t.Fatalf("unexpected authorization: %+v", auth)
	}
	if !auth.Status.Holds() {
		t.Fatal("expected funds to be held")
	}

	params := stub.createParams
	if params == nil {
		t.Fatal("expected intent create call")
	}
	if got := stripe.StringValue(params.CaptureMethod); got != string(stripe.PaymentIntentCaptureMethodManual) {
		t.Fatalf("capture method = %q, want manual", got)
	}
	if !stripe.BoolValue(params.Confirm) {
		t.Fatal("expected confirm when an instrument is supplied")
	}
	if got := stripe.StringValue(params.PaymentMethod); got != "pm_card" {
		t.Fatalf("payment method = %q", got)
	}
	if got := stripe.StringValue(params.Currency); got != "usd" {
		t.Fatalf("currency = %q, want lowercase", got)
	}
}

func TestStripeAuthorizeWithoutInstrumentDefersConfirmation(t *testing.T) {
	stub := &stubIntentClient{intent: &stripe.PaymentIntent{
		ID:           "pi_456",
		Status:       stripe.PaymentIntentStatusRequiresConfirmation,
		ClientSecret: "pi_456_secret",
	}}
	provider := newStripeProviderForTest(t, stub)

	auth, err := provider.Authorize(context.Background(), AuthorizeInput{AmountCents: 5000, Currency: "USD"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Status != StatusRequiresAction {
		t.Fatalf("status = %q, want requires_action", auth.Status)
	}
	if auth.ClientSecret != "pi_456_secret" {
		t.Fatal("expected client secret for the payer challenge")
	}
	if stub.createParams.Confirm != nil {
		t.Fatal("confirm should be left unset without an instrument")
	}
}

func TestStripeAuthorizeFreshIntentAwaitsPaymentMethod(t *testing.T) {
	stub := &stubIntentClient{intent: &stripe.PaymentIntent{
		ID:           "pi_fresh",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "pi_fresh_secret",
		Amount:       92240,
		Currency:     stripe.CurrencyUSD,
	}}
	provider := newStripeProviderForTest(t, stub)

	auth, err := provider.Authorize(context.Background(), AuthorizeInput{AmountCents: 92240, Currency: "USD"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Status != StatusRequiresAction {
		t.Fatalf("status = %q, want requires_action", auth.Status)
	}
	if auth.Status.Terminal() {
		t.Fatal("fresh intent must stay open for client-side confirmation")
	}
	if auth.ClientSecret != "pi_fresh_secret" {
		t.Fatal("expected client secret so the payer can attach a card")
	}
}

func TestStripeConfirmWithInstrument(t *testing.T) {
	stub := &stubIntentClient{intent: &stripe.PaymentIntent{
		ID:     "pi_456",
		Status: stripe.PaymentIntentStatusRequiresCapture,
	}}
	provider := newStripeProviderForTest(t, stub)

	auth, err := provider.ConfirmWithInstrument(context.Background(), "pi_456", "pm_card")
	if err != nil {
		t.Fatalf("ConfirmWithInstrument: %v", err)
	}
	if auth.Status != StatusAuthorized {
		t.Fatalf("status = %q, want authorized", auth.Status)
	}
	if stub.confirmID != "pi_456" {
		t.Fatalf("confirmed id = %q", stub.confirmID)
	}
	if got := stripe.StringValue(stub.confirmParams.PaymentMethod); got != "pm_card" {
		t.Fatalf("payment method = %q", got)
	}
}

func TestStripeCardDeclineMapsToProcessorError(t *testing.T) {
	stub := &stubIntentClient{err: &stripe.Error{
		Type: stripe.ErrorTypeCard,
		Code: stripe.ErrorCodeCardDeclined,
		Msg:  "Your card was declined.",
	}}
	provider := newStripeProviderForTest(t, stub)

	_, err := provider.Authorize(context.Background(), AuthorizeInput{
		AmountCents:   5000,
		Currency:      "USD",
		InstrumentRef: "pm_bad",
	})
	if err == nil {
		t.Fatal("expected decline error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePaymentProcessor {
		t.Fatalf("expected payment processor code, got %v", err)
	}
	if typed.Message() != "Your card was declined." {
		t.Fatalf("message = %q", typed.Message())
	}
}

func TestStripeCancelReleasesHold(t *testing.T) {
	stub := &stubIntentClient{intent: &stripe.PaymentIntent{
		ID:     "pi_789",
		Status: stripe.PaymentIntentStatusCanceled,
	}}
	provider := newStripeProviderForTest(t, stub)

	if err := provider.Cancel(context.Background(), "pi_789"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if stub.cancelID != "pi_789" {
		t.Fatalf("canceled id = %q", stub.cancelID)
	}
}

func TestStripeRetrieveStatus(t *testing.T) {
	stub := &stubIntentClient{intent: &stripe.PaymentIntent{
		ID:     "pi_1",
		Status: stripe.PaymentIntentStatusSucceeded,
	}}
	provider := newStripeProviderForTest(t, stub)

	auth, err := provider.RetrieveStatus(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("RetrieveStatus: %v", err)
	}
	if auth.Status != StatusCaptured {
		t.Fatalf("status = %q, want captured", auth.Status)
	}
	if stub.getID != "pi_1" {
		t.Fatalf("retrieved id = %q", stub.getID)
	}
}

func TestStatusFromIntent(t *testing.T) {
	cases := []struct {
		in   stripe.PaymentIntentStatus
		want Status
	}{
		{stripe.PaymentIntentStatusRequiresCapture, StatusAuthorized},
		{stripe.PaymentIntentStatusRequiresAction, StatusRequiresAction},
		{stripe.PaymentIntentStatusRequiresConfirmation, StatusRequiresAction},
		{stripe.PaymentIntentStatusRequiresPaymentMethod, StatusRequiresAction},
		{stripe.PaymentIntentStatusCanceled, StatusCanceled},
		{stripe.PaymentIntentStatusSucceeded, StatusCaptured},
		{stripe.PaymentIntentStatusProcessing, StatusUnknown},
	}
	for _, tc := range cases {
		if got := statusFromIntent(tc.in); got != tc.want {
			t.Fatalf("statusFromIntent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
