package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quizhub/internal/auth"
	"quizhub/internal/domain"
)

const minPasswordLength = 6

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUser(ctx context.Context, userID int64) (domain.User, error)
}

// AuthService is the authentication collaborator: registration, login, and
// current-user lookup. Token verification lives in the auth package and runs
// at the transport boundary.
type AuthService struct {
	users  UserRepository
	tokens *auth.Manager
	now    func() time.Time
}

func NewAuthService(users UserRepository, tokens *auth.Manager) *AuthService {
	return &AuthService{users: users, tokens: tokens, now: time.Now}
}

// Register creates an account with a bcrypt-hashed password. The role
// defaults to "user" unless "admin" is requested explicitly.
func (s *AuthService) Register(ctx context.Context, username, email, password, role string) (int64, error) {
	if username == "" || email == "" || password == "" {
		return 0, domain.ErrInvalidInput
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return 0, domain.ErrInvalidInput
	}
	if len(password) < minPasswordLength {
		return 0, domain.ErrInvalidInput
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return 0, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return 0, domain.WrapStore(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, domain.WrapStore(err)
	}

	userRole := domain.RoleUser
	if role == string(domain.RoleAdmin) {
		userRole = domain.RoleAdmin
	}

	id, err := s.users.CreateUser(ctx, domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         userRole,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return 0, domain.WrapStore(err)
	}
	return id, nil
}

// Login verifies the credentials and issues a bearer token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	if email == "" || password == "" {
		return domain.User{}, "", domain.ErrInvalidInput
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", domain.WrapStore(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return domain.User{}, "", domain.WrapStore(err)
	}
	return user, token, nil
}

// CurrentUser resolves the authenticated caller's account.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, domain.WrapStore(err)
	}
	return user, nil
}
