package instruments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/square"
)

// providerSquare tags rows vaulted through the Square card API.
const providerSquare = "square"

// Service orchestrates card-on-file persistence for guests.
type Service interface {
	SaveCard(ctx context.Context, userID uuid.UUID, input SaveCardInput) (*models.PaymentMethod, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error)
	SetDefault(ctx context.Context, userID, methodID uuid.UUID) error
	Remove(ctx context.Context, userID, methodID uuid.UUID) error
}

// SaveCardInput captures the payload required to vault a card.
type SaveCardInput struct {
	SourceID          string
	CardholderName    string
	VerificationToken string
	IsDefault         bool
	IdempotencyKey    string
}

type cardVault interface {
	EnsureCustomer(ctx context.Context, params square.CustomerCreateParams) (*sq.Customer, error)
	CreateCard(ctx context.Context, params square.CardCreateParams) (*sq.Card, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the instrument service.
type ServiceParams struct {
	Repo              *Repository
	Users             userLoader
	Vault             cardVault
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	repo  *Repository
	users userLoader
	vault cardVault
	tx    txRunner
	logg  *logger.Logger
}

// NewService constructs an instrument service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "instrument repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user loader required")
	}
	if params.Vault == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "card vault required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		repo:  params.Repo,
		users: params.Users,
		vault: params.Vault,
		tx:    params.TransactionRunner,
		logg:  params.Logger,
	}, nil
}

// SaveCard vaults a tokenized card with the processor and persists its
// display metadata.
func (s *service) SaveCard(ctx context.Context, userID uuid.UUID, input SaveCardInput) (*models.PaymentMethod, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	sourceID := strings.TrimSpace(input.SourceID)
	if sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_id is required")
	}
	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}

	customerRef, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := square.CardCreateParams{
		CustomerID:     customerRef,
		SourceID:       sourceID,
		ReferenceID:    fmt.Sprintf("ds:user:%s", userID),
		IdempotencyKey: idempotencyKey,
	}
	if cardholder := strings.TrimSpace(input.CardholderName); cardholder != "" {
		params.CardholderName = cardholder
	}
	if token := strings.TrimSpace(input.VerificationToken); token != "" {
		params.VerificationToken = token
	}

	card, err := s.vault.CreateCard(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "vault card")
	}
	if card == nil || card.GetID() == nil || strings.TrimSpace(*card.GetID()) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card response missing id")
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods")
	}
	// The first saved card always becomes the default.
	shouldDefault := len(existing) == 0 || input.IsDefault

	method := buildPaymentMethod(card, userID, shouldDefault)
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if shouldDefault && len(existing) > 0 {
			if err := txRepo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return txRepo.Create(ctx, method)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment method")
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(ctx, "payment instrument saved")
	return method, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) SetDefault(ctx context.Context, userID, methodID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		updated, err := txRepo.SetDefault(ctx, methodID, userID)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
		}
		return nil
	})
}

func (s *service) Remove(ctx context.Context, userID, methodID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	deleted, err := s.repo.Delete(ctx, methodID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment method")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
	}
	return nil
}

// ensureCustomer resolves the processor customer for the user, creating it
// on first use.
func (s *service) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	link, err := s.repo.CustomerRef(ctx, userID, providerSquare)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load processor customer")
	}
	if link != nil && strings.TrimSpace(link.CustomerRef) != "" {
		return link.CustomerRef, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	customer, err := s.vault.EnsureCustomer(ctx, square.CustomerCreateParams{
		Email:       strings.TrimSpace(user.Email),
		GivenName:   strings.TrimSpace(user.FirstName),
		FamilyName:  strings.TrimSpace(user.LastName),
		PhoneNumber: strings.TrimSpace(phoneOf(user)),
		ReferenceID: fmt.Sprintf("ds:user:%s", userID),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure processor customer")
	}
	if customer == nil || customer.GetID() == nil || strings.TrimSpace(*customer.GetID()) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "processor customer id missing")
	}

	ref := strings.TrimSpace(*customer.GetID())
	if err := s.repo.SaveCustomerRef(ctx, &models.ProcessorCustomer{
		UserID:      userID,
		Provider:    providerSquare,
		CustomerRef: ref,
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save processor customer")
	}
	return ref, nil
}

func buildPaymentMethod(card *sq.Card, userID uuid.UUID, isDefault bool) *models.PaymentMethod {
	method := &models.PaymentMethod{
		ID:          uuid.New(),
		UserID:      userID,
		Provider:    providerSquare,
		ProviderRef: strings.TrimSpace(*card.GetID()),
		CardLast4:   card.GetLast4(),
		IsDefault:   isDefault,
	}
	if brand := card.GetCardBrand(); brand != nil && strings.TrimSpace(string(*brand)) != "" {
		value := string(*brand)
		method.CardBrand = &value
	}
	if month := card.GetExpMonth(); month != nil {
		v := int(*month)
		method.CardExpMonth = &v
	}
	if year := card.GetExpYear(); year != nil {
		v := int(*year)
		method.CardExpYear = &v
	}
	return method
}

func phoneOf(user *models.User) string {
	if user == nil || user.Phone == nil {
		return ""
	}
	return *user.Phone
}
