package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/models"
	"github.com/giftmind/giftmind-backend/internal/services"
)

func gateTestTokens() *services.TokenService {
	return services.NewTokenService(&config.Config{
		JWTAccessSecret:  "gate-access-secret",
		JWTRefreshSecret: "gate-refresh-secret",
		JWTAccessTTL:     time.Hour,
		JWTRefreshTTL:    24 * time.Hour,
	})
}

func gateHandler(t *testing.T, tokens *services.TokenService, sawUser *models.UserPayload) http.Handler {
	t.Helper()
	return RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		*sawUser = *user
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	tokens := gateTestTokens()
	token, err := tokens.SignAccessToken(models.UserPayload{ID: 7, Nickname: "心礼用户"})
	require.NoError(t, err)

	var saw models.UserPayload
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	gateHandler(t, tokens, &saw).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), saw.ID)
	assert.Equal(t, "心礼用户", saw.Nickname)
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	tokens := gateTestTokens()
	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Token abc", "bearer lowercase"} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.JSONEq(t, `{"code":401,"message":"Unauthorized"}`, rec.Body.String())
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	tokens := gateTestTokens()
	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsRevokedToken(t *testing.T) {
	// A blacklisted token is rejected even though its signature still verifies.
	tokens := gateTestTokens()
	token, err := tokens.SignAccessToken(models.UserPayload{ID: 7})
	require.NoError(t, err)
	tokens.RevokeAccessToken(token)

	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	assert.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", BearerToken(req))
}
