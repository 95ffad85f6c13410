package payments

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name      string
	cancelIDs []string
	cancelErr error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Authorize(ctx context.Context, in AuthorizeInput) (*Authorization, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) ConfirmWithInstrument(ctx context.Context, authorizationID, instrumentRef string) (*Authorization, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) Cancel(ctx context.Context, authorizationID string) error {
	s.cancelIDs = append(s.cancelIDs, authorizationID)
	return s.cancelErr
}

func (s *stubProvider) RetrieveStatus(ctx context.Context, authorizationID string) (*Authorization, error) {
	return nil, errors.New("not implemented")
}

func TestCompensatorReleasesHold(t *testing.T) {
	provider := &stubProvider{name: "stripe"}
	comp, err := NewCompensator(provider, testLogger())
	if err != nil {
		t.Fatalf("NewCompensator: %v", err)
	}

	if !comp.Release(context.Background(), "pi_123", "availability_conflict") {
		t.Fatal("expected release to succeed")
	}
	if len(provider.cancelIDs) != 1 || provider.cancelIDs[0] != "pi_123" {
		t.Fatalf("cancel calls = %v", provider.cancelIDs)
	}
}

func TestCompensatorSwallowsCancelFailure(t *testing.T) {
	provider := &stubProvider{name: "stripe", cancelErr: errors.New("processor unreachable")}
	comp, err := NewCompensator(provider, testLogger())
	if err != nil {
		t.Fatalf("NewCompensator: %v", err)
	}

	if comp.Release(context.Background(), "pi_123", "vehicle_swap") {
		t.Fatal("expected release to report failure")
	}
}

func TestCompensatorSkipsEmptyAuthorization(t *testing.T) {
	provider := &stubProvider{name: "stripe"}
	comp, err := NewCompensator(provider, testLogger())
	if err != nil {
		t.Fatalf("NewCompensator: %v", err)
	}

	if !comp.Release(context.Background(), "  ", "availability_conflict") {
		t.Fatal("blank authorization has nothing to release")
	}
	if len(provider.cancelIDs) != 0 {
		t.Fatalf("unexpected cancel calls: %v", provider.cancelIDs)
	}
}

func TestNewCompensatorRequiresDependencies(t *testing.T) {
	if _, err := NewCompensator(nil, testLogger()); err == nil {
		t.Fatal("expected error without provider")
	}
	if _, err := NewCompensator(&stubProvider{}, nil); err == nil {
		t.Fatal("expected error without logger")
	}
}
