package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/models"
)

type addCollectRequest struct {
	ItemID int64 `json:"itemId"`
}

// AddCollect saves an item to the user's collection. Adding an already
// collected item is a no-op that still succeeds.
func AddCollect(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req addCollectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ItemID <= 0 {
		respondError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	collect, err := collectsService.Add(r.Context(), user.ID, req.ItemID)
	if err != nil {
		log.Printf("addCollect failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to collect item")
		return
	}
	respondOK(w, collect)
}

// RemoveCollect deletes an item from the collection; absent items read as
// not found.
func RemoveCollect(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	removed, err := collectsService.Remove(r.Context(), user.ID, itemID)
	if err != nil {
		log.Printf("removeCollect %d failed for user %d: %v", itemID, user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to remove collect")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "Collect not found")
		return
	}
	respondOK(w, map[string]bool{"removed": true})
}

type collectPage struct {
	List []models.Collect `json:"list"`
	Meta models.PageMeta  `json:"meta"`
}

// ListCollects returns one page of the user's collection, newest first.
func ListCollects(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("limit"))

	list, meta, err := collectsService.List(r.Context(), user.ID, page, pageSize)
	if err != nil {
		log.Printf("listCollects failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list collects")
		return
	}
	respondOK(w, collectPage{List: list, Meta: meta})
}

// CollectStatus reports whether one item is collected.
func CollectStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	status, err := collectsService.Status(r.Context(), user.ID, itemID)
	if err != nil {
		log.Printf("collectStatus %d failed for user %d: %v", itemID, user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load collect status")
		return
	}
	respondOK(w, status)
}

// CollectStats returns collection totals.
func CollectStats(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := collectsService.Stats(r.Context(), user.ID)
	if err != nil {
		log.Printf("collectStats failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load collect stats")
		return
	}
	respondOK(w, stats)
}
