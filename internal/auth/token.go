package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizhub/internal/domain"
)

// Identity is the request-scoped authentication context. It is extracted
// once at the transport boundary and passed explicitly into operations;
// there is no ambient session state.
type Identity struct {
	UserID int64
	Role   domain.Role
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == domain.RoleAdmin
}

type claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 bearer tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// NewManagerWithClock is test-only for deterministic expiry.
func NewManagerWithClock(secret string, ttl time.Duration, now func() time.Time) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue signs a token carrying the user id and role.
func (m *Manager) Issue(userID int64, role domain.Role) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a bearer token and returns the identity it carries. Any
// parse, signature, or expiry problem surfaces as ErrUnauthorized.
func (m *Manager) Verify(raw string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return Identity{}, domain.ErrUnauthorized
	}
	if c.UserID == 0 {
		return Identity{}, domain.ErrUnauthorized
	}
	return Identity{UserID: c.UserID, Role: domain.Role(c.Role)}, nil
}
