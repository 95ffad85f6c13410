package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/driveshare-backend/internal/users"
	pkgAuth "github.com/calebreyes/driveshare-backend/pkg/auth"
	"github.com/calebreyes/driveshare-backend/pkg/config"
	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "driveshare",
	ExpirationMinutes: 30,
}

func TestLoginIssuesGuestToken(t *testing.T) {
	password := "guest-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "guest@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Ada",
		LastName:     "Guest",
		Role:         enums.UserRoleGuest,
		IsActive:     true,
	}

	svc, _ := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Guest@Example.com",
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("user id claim = %s", claims.UserID)
	}
	if claims.Role != enums.UserRoleGuest {
		t.Fatalf("expected guest role claim, got %s", claims.Role)
	}
	if resp.RefreshToken == "" {
		t.Fatal("expected refresh token to be set")
	}
	if user.LastLoginAt == nil {
		t.Fatal("last login should be recorded")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "guest@example.com",
		PasswordHash: mustHashPassword(t, "right-password"),
		Role:         enums.UserRoleGuest,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	password := "guest-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "guest@example.com",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.UserRoleGuest,
		IsActive:     false,
	}
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestRegisterCreatesGuest(t *testing.T) {
	svc, repo := buildTestService(t, nil)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ada",
		LastName:  "Guest",
		Email:     "New.Guest@Example.com",
		Password:  "long-enough-password",
		AcceptTOS: true,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if repo.created == nil {
		t.Fatal("user should have been created")
	}
	if repo.created.Email != "new.guest@example.com" {
		t.Fatalf("email should be lowercased, got %q", repo.created.Email)
	}
	if repo.created.PasswordHash == "long-enough-password" {
		t.Fatal("password must be hashed")
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleGuest {
		t.Fatalf("new users register as guests, got %s", claims.Role)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	existing := &models.User{
		ID:    uuid.New(),
		Email: "taken@example.com",
	}
	svc, _ := buildTestService(t, existing)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ada",
		LastName:  "Guest",
		Email:     "taken@example.com",
		Password:  "long-enough-password",
		AcceptTOS: true,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterRequiresTOS(t *testing.T) {
	svc, _ := buildTestService(t, nil)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ada",
		LastName:  "Guest",
		Email:     "new@example.com",
		Password:  "long-enough-password",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubUserRepo) {
	t.Helper()
	repo := &stubUserRepo{user: user}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{refreshToken: "refresh-token"},
		JWTConfig:      testJWTConfig,
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubUserRepo struct {
	user    *models.User
	created *models.User
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	s.created = dto.ToModel()
	return s.created, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	return s.refreshToken, nil
}
