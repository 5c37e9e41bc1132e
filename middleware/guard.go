package middleware

import (
	"net/http"
	"strings"
)

const (
	AuthPath    = "/auth"
	LandingPath = "/dashboard"
)

// ProtectedPrefixes are the page paths that need a session.
var ProtectedPrefixes = []string{"/dashboard", "/documents", "/folders", "/profile"}

// Decide is the route guard: given whether the navigation carries a session
// and the requested path, it returns where to redirect, or "" to pass
// through.
func Decide(authenticated bool, path string) string {
	if !authenticated {
		for _, prefix := range ProtectedPrefixes {
			if strings.HasPrefix(path, prefix) {
				return AuthPath
			}
		}
		return ""
	}
	if strings.HasPrefix(path, AuthPath) {
		return LandingPath
	}
	return ""
}

// GuardMiddleware applies Decide to page navigations. A token that fails to
// parse counts as no session.
func GuardMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated := false
			if token := TokenFromRequest(r); token != "" {
				if _, err := auth.Parse(r.Context(), token); err == nil {
					authenticated = true
				}
			}

			if target := Decide(authenticated, r.URL.Path); target != "" {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
