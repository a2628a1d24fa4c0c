package middleware

import (
	"net/http"
	"strings"

	"github.com/hongminglow/staff-portal/internal/auth"
	"github.com/hongminglow/staff-portal/internal/http/respond"
)

// TokenParser turns a bearer token into a principal.
type TokenParser interface {
	Parse(raw string) (auth.Principal, error)
}

// Authenticate requires a valid bearer session token and attaches its principal to the request.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				respond.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			p, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			if h, ok := r.Context().Value(holderKey{}).(*principalHolder); ok {
				h.set(p)
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
