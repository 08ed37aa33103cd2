package handlers

import (
	"net/http"

	"github.com/giftmind/giftmind-backend/internal/middleware"
)

// InsightsBoard returns the home-board card: a reminder for the nearest
// upcoming event, or the quote of the day when nothing is close.
func InsightsBoard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respondOK(w, insightsService.Board(r.Context(), user.ID))
}

// InsightsUpcomingEvents lists the user's events inside the reminder
// lookahead, soonest first.
func InsightsUpcomingEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respondOK(w, insightsService.UpcomingEvents(r.Context(), user.ID))
}
