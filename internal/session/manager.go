package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kolabnaskah/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevoked      = errors.New("session has been signed out")
)

// Manager owns the session lifecycle from sign-in to sign-out.
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  RevocationStore
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, store RevocationStore) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs a new token for the user.
func (m *Manager) Issue(userID, email string) (string, *Session, error) {
	now := m.now()
	s := &Session{
		UserID:    userID,
		Email:     email,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        s.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, s, nil
}

// Parse validates tokenString and returns the session it carries.
// Tokens without an id (for example ones minted by Supabase) are accepted
// but cannot be revoked.
func (m *Manager) Parse(ctx context.Context, tokenString string) (*Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		// Ensure the signing method is HMAC (Supabase default)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: sub claim is missing", ErrInvalidToken)
	}

	s := &Session{UserID: c.Subject, Email: c.Email, TokenID: c.ID}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}

	if s.TokenID != "" && m.store != nil {
		revoked, err := m.store.IsRevoked(ctx, s.TokenID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return s, nil
}

// SignOut revokes the session's token.
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	if s.TokenID == "" || m.store == nil {
		return nil
	}
	if err := m.store.Revoke(ctx, s.TokenID, s.ExpiresAt); err != nil {
		return err
	}
	logger.Sugar.Infof("User %s signed out", s.UserID)
	return nil
}

// Close tears the session state down at process exit.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
