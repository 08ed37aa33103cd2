package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/giftmind/giftmind-backend/internal/models"
	"github.com/giftmind/giftmind-backend/internal/services"
)

type contextKey string

const userContextKey contextKey = "auth_user"

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":401,"message":"Unauthorized"}`))
}

// RequireAuth gates a request on a valid bearer access token. The revocation
// list is consulted before signature verification: it is cheaper, and a
// blacklisted token must be rejected even while cryptographically valid.
// On success the decoded session payload is attached to the request context.
func RequireAuth(tokens *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeUnauthorized(w)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			if tokens.IsAccessTokenRevoked(token) {
				writeUnauthorized(w)
				return
			}

			payload, err := tokens.VerifyAccessToken(token)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the session payload attached by RequireAuth.
func UserFromContext(ctx context.Context) (*models.UserPayload, bool) {
	payload, ok := ctx.Value(userContextKey).(*models.UserPayload)
	return payload, ok
}

// BearerToken extracts the raw token from the Authorization header, or ""
// when absent. Used by logout, which must work without a valid session.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
