package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// InspirationsHome returns the aggregate for the inspirations home screen.
// CMS failures degrade to an empty payload so the screen always renders.
func InspirationsHome(w http.ResponseWriter, r *http.Request) {
	respondOK(w, inspirationsService.HomeData(r.Context()))
}

// InspirationTheme returns one theme with its items.
func InspirationTheme(w http.ResponseWriter, r *http.Request) {
	theme := inspirationsService.ThemeByID(r.Context(), chi.URLParam(r, "id"))
	if theme == nil {
		respondError(w, http.StatusNotFound, "Theme not found")
		return
	}
	respondOK(w, theme)
}

// InspirationItem returns one item.
func InspirationItem(w http.ResponseWriter, r *http.Request) {
	item := inspirationsService.ItemByID(r.Context(), chi.URLParam(r, "id"))
	if item == nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}
	respondOK(w, item)
}
