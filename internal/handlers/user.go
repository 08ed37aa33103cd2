package handlers

import (
	"log"
	"net/http"

	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/services"
)

// GetSettings returns the user's notification settings, defaults when unset.
func GetSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	settings, err := settingsService.Get(r.Context(), user.ID)
	if err != nil {
		log.Printf("getSettings failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	respondOK(w, settings)
}

// UpdateSettings applies the provided settings fields and returns the result.
func UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var patch services.SettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	settings, err := settingsService.Update(r.Context(), user.ID, patch)
	if err != nil {
		log.Printf("updateSettings failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}
	respondOK(w, settings)
}
