package middleware

import (
	"context"
	"net/http"
	"strings"

	"kolabnaskah/internal/session"
	"kolabnaskah/pkg/logger"
)

type contextKey string

const UserIDKey contextKey = "userID"

// SessionCookie carries the session token for page navigations.
const SessionCookie = "session"

// TokenFromRequest finds the session token on r. WebSockets pass it in the
// query string because the browser's WebSocket API doesn't support custom
// headers; pages carry it in a cookie; API clients send a Bearer header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Authenticator resolves a request to its session.
type Authenticator interface {
	Parse(ctx context.Context, token string) (*session.Session, error)
}

func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			s, err := auth.Parse(r.Context(), tokenString)
			if err != nil {
				logger.Sugar.Infof("Invalid token: %v", err)
				http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
				return
			}

			// Add the session and user id to context for the next handler
			ctx := session.WithSession(r.Context(), s)
			ctx = context.WithValue(ctx, UserIDKey, s.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id placed on ctx by AuthMiddleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
