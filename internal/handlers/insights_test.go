package handlers

import (
	"context"
	"net/http"
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

type staticArchives struct {
	archives []models.Archive
}

func (s *staticArchives) AllForUser(context.Context, int64) ([]models.Archive, error) {
	return s.archives, nil
}

type emptyQuotes struct{}

func (emptyQuotes) RandomActive(context.Context) (*services.InsightCopy, error) { return nil, nil }

func setupInsightsRouter(t *testing.T, archives []models.Archive) (*chi.Mux, string) {
	t.Helper()
	cfg := &config.Config{
		JWTAccessSecret:  "insights-access-secret",
		JWTRefreshSecret: "insights-refresh-secret",
		JWTAccessTTL:     time.Hour,
		JWTRefreshTTL:    24 * time.Hour,
	}
	tokenService = services.NewTokenService(cfg)
	insightsService = services.NewInsightsService(&staticArchives{archives: archives}, emptyQuotes{})

	accessToken, err := tokenService.SignAccessToken(models.UserPayload{ID: 7})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokenService))
		r.Get("/api/insights/board", InsightsBoard)
		r.Get("/api/insights/board/upcoming", InsightsUpcomingEvents)
	})
	return r, accessToken
}

func TestInsightsBoardReturnsReminderCard(t *testing.T) {
	today := time.Now().Format("01-02")
	router, accessToken := setupInsightsRouter(t, []models.Archive{{
		ID:     1,
		Name:   "妈妈",
		Events: []models.EventItem{{Name: "生日", Date: today}},
	}})

	rec := getWithBearer(t, router, "/api/insights/board", accessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	env, data := decodeEnvelope(t, rec)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "reminder", data["type"])
	assert.Equal(t, "今天就是妈妈的生日，需要我帮你准备礼物吗？", data["message"])
}

func TestInsightsBoardFallsBackToDailyQuote(t *testing.T) {
	router, accessToken := setupInsightsRouter(t, nil)

	rec := getWithBearer(t, router, "/api/insights/board", accessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decodeEnvelope(t, rec)
	assert.Equal(t, "dailyQuote", data["type"])
	assert.NotEmpty(t, data["message"])
}

func TestInsightsUpcomingEventsRequiresAuth(t *testing.T) {
	router, _ := setupInsightsRouter(t, nil)

	rec := getWithBearer(t, router, "/api/insights/board/upcoming", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
