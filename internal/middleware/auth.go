package middleware

import (
	"context"
	"net/http"
	"strings"

	"omnidesk/internal/auth"

	"github.com/sirupsen/logrus"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// ClaimsFromContext returns the authenticated claims set by AuthMiddleware,
// or nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsContextKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// WithClaims injects claims into a context. Test hook.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the token claims on the request context.
func AuthMiddleware(verifier *auth.TokenVerifier, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.WithError(err).Warn("Rejected request with invalid token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
