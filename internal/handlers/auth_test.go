package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/models"
	"github.com/giftmind/giftmind-backend/internal/services"
)

// memoryUsers is a minimal in-memory user store for handler tests.
type memoryUsers struct {
	users  map[int64]*models.User
	nextID int64
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryUsers) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	for _, u := range m.users {
		if u.Phone != nil && *u.Phone == phone {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) FindByWechat(_ context.Context, openID, unionID string) (*models.User, error) {
	for _, u := range m.users {
		if u.WechatOpenID != nil && *u.WechatOpenID == openID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) Create(_ context.Context, u *models.User) error {
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *memoryUsers) Update(_ context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if patch.Nickname != nil {
		u.Nickname = *patch.Nickname
	}
	if patch.LoginProvider != nil {
		u.LoginProvider = *patch.LoginProvider
	}
	copied := *u
	return &copied, nil
}

type noWechat struct{}

func (noWechat) Code2Session(context.Context, string) (*services.WechatSession, error) {
	return nil, services.ErrProviderError
}

// setupAuthRouter wires the handler globals against in-memory fakes and
// returns a router with the session-relevant routes.
func setupAuthRouter(t *testing.T) *chi.Mux {
	t.Helper()
	cfg := &config.Config{
		JWTAccessSecret:  "handler-access-secret",
		JWTRefreshSecret: "handler-refresh-secret",
		JWTAccessTTL:     time.Hour,
		JWTRefreshTTL:    24 * time.Hour,
	}
	tokenService = services.NewTokenService(cfg)
	users := &memoryUsers{users: map[int64]*models.User{}}
	authService = services.NewAuthService(users, tokenService, noWechat{}, cfg)

	r := chi.NewRouter()
	r.Post("/api/auth/loginSms", LoginSms)
	r.Post("/api/auth/refresh", Refresh)
	r.Post("/api/auth/logout", Logout)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokenService))
		r.Get("/api/auth/me", Me)
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getWithBearer(t *testing.T, router http.Handler, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (Envelope, map[string]interface{}) {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	data, _ := env.Data.(map[string]interface{})
	return env, data
}

func TestSessionLifecycle(t *testing.T) {
	router := setupAuthRouter(t)

	// Login issues both tokens.
	rec := postJSON(t, router, "/api/auth/loginSms", map[string]string{
		"phone": "18988889999",
		"code":  "123456",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env, data := decodeEnvelope(t, rec)
	assert.Equal(t, 0, env.Code)
	accessToken, _ := data["accessToken"].(string)
	refreshToken, _ := data["refreshToken"].(string)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)

	// The access token opens the gate.
	rec = getWithBearer(t, router, "/api/auth/me", accessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	env, data = decodeEnvelope(t, rec)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "18988889999", data["phone"])
	assert.Equal(t, models.DefaultNickname, data["nickname"])

	// Refresh yields a working access token without rotating the refresh token.
	rec = postJSON(t, router, "/api/auth/refresh", map[string]string{"refreshToken": refreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, data = decodeEnvelope(t, rec)
	newAccess, _ := data["accessToken"].(string)
	require.NotEmpty(t, newAccess)

	rec = getWithBearer(t, router, "/api/auth/me", newAccess)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Logout revokes the presented access token and the refresh entry.
	rec = postJSON(t, router, "/api/auth/logout", map[string]string{"refreshToken": refreshToken}, newAccess)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getWithBearer(t, router, "/api/auth/me", newAccess)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, router, "/api/auth/refresh", map[string]string{"refreshToken": refreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The first access token was never blacklisted and still works.
	rec = getWithBearer(t, router, "/api/auth/me", accessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginSmsRejectsBadCredentials(t *testing.T) {
	router := setupAuthRouter(t)

	rec := postJSON(t, router, "/api/auth/loginSms", map[string]string{
		"phone": "12345",
		"code":  "123456",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env, _ := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusUnauthorized, env.Code)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	router := setupAuthRouter(t)

	// No tokens at all.
	rec := postJSON(t, router, "/api/auth/logout", map[string]string{}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Garbage tokens.
	rec = postJSON(t, router, "/api/auth/logout", map[string]string{"refreshToken": "junk"}, "junk")
	assert.Equal(t, http.StatusOK, rec.Code)
}
