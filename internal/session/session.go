// Package session is the process-wide authentication state: it issues and
// parses session tokens, carries the current user through request
// contexts, and remembers signed-out tokens until they expire.
package session

import (
	"context"
	"time"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the authenticated user as the rest of the service sees it.
// It is read-only; authorization beyond "signed in or not" happens in the
// store queries.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}
