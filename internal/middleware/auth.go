package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// TokenVerifier turns a bearer token into the caller it identifies.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by NewAuthenticator.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

// NewAuthenticator returns a middleware that requires an
// "Authorization: Bearer <jwt>" header. Missing or invalid tokens get 401.
func NewAuthenticator(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			p, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole returns a middleware that lets through only callers holding one
// of roles; others get 403. It must run after NewAuthenticator.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden, "insufficient permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
