package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizhub/internal/app"
	"quizhub/internal/auth"
	"quizhub/internal/domain"
	"quizhub/internal/infra/memory"
)

func newAuthService() (*app.AuthService, *auth.Manager) {
	tokens := auth.NewManager("test-secret", time.Hour)
	return app.NewAuthService(memory.NewStore(), tokens), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	service, tokens := newAuthService()

	userID, err := service.Register(ctx, "alice", "alice@example.com", "secret1", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if userID == 0 {
		t.Fatalf("expected a user id")
	}

	user, token, err := service.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != userID || user.Role != domain.RoleUser {
		t.Fatalf("unexpected user %+v", user)
	}

	identity, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if identity.UserID != userID || identity.IsAdmin() {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newAuthService()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"missing username", "", "a@example.com", "secret1"},
		{"missing email", "alice", "", "secret1"},
		{"bad email shape", "alice", "not-an-email", "secret1"},
		{"short password", "alice", "a@example.com", "12345"},
	}
	for _, tc := range cases {
		if _, err := service.Register(ctx, tc.username, tc.email, tc.password, ""); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	service, _ := newAuthService()

	if _, err := service.Register(ctx, "alice", "alice@example.com", "secret1", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := service.Register(ctx, "alice2", "alice@example.com", "secret2", ""); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	service, _ := newAuthService()

	if _, err := service.Register(ctx, "alice", "alice@example.com", "secret1", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := service.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
	if _, _, err := service.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestRegisterAdminRole(t *testing.T) {
	ctx := context.Background()
	service, _ := newAuthService()

	userID, err := service.Register(ctx, "root", "root@example.com", "secret1", "admin")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	user, err := service.CurrentUser(ctx, userID)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", user.Role)
	}
	if user.PasswordHash == "secret1" {
		t.Fatalf("password must not be stored in the clear")
	}
}
