package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/models"
	"github.com/giftmind/giftmind-backend/internal/services"
)

func listOptionsFromQuery(r *http.Request) services.ListArchivesOptions {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("limit"))
	return services.ListArchivesOptions{
		Page:      page,
		PageSize:  pageSize,
		SortField: q.Get("sortField"),
		SortOrder: q.Get("sortOrder"),
	}
}

type archivePage struct {
	List []models.Archive `json:"list"`
	Meta models.PageMeta  `json:"meta"`
}

// ListArchives returns one page of the user's archives.
func ListArchives(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	list, meta, err := archivesService.List(r.Context(), user.ID, listOptionsFromQuery(r))
	if err != nil {
		log.Printf("listArchives failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list archives")
		return
	}
	respondOK(w, archivePage{List: list, Meta: meta})
}

// GetArchive returns one archive; archives of other users read as not found.
func GetArchive(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid archive id")
		return
	}

	archive, err := archivesService.Get(r.Context(), user.ID, id)
	if err != nil {
		log.Printf("getArchive %d failed for user %d: %v", id, user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load archive")
		return
	}
	if archive == nil {
		respondError(w, http.StatusNotFound, "Archive not found")
		return
	}
	respondOK(w, archive)
}

// CreateArchive creates a gift-recipient archive.
func CreateArchive(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input services.ArchiveInput
	if !decodeBody(w, r, &input) {
		return
	}
	if strings.TrimSpace(input.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	archive, err := archivesService.Create(r.Context(), user.ID, input)
	if err != nil {
		log.Printf("createArchive failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to create archive")
		return
	}
	respondOK(w, archive)
}

// UpdateArchive overwrites an archive's writable fields.
func UpdateArchive(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid archive id")
		return
	}

	var input services.ArchiveInput
	if !decodeBody(w, r, &input) {
		return
	}

	archive, err := archivesService.Update(r.Context(), user.ID, id, input)
	if err != nil {
		log.Printf("updateArchive %d failed for user %d: %v", id, user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update archive")
		return
	}
	if archive == nil {
		respondError(w, http.StatusNotFound, "Archive not found")
		return
	}
	respondOK(w, archive)
}

// DeleteArchive removes an archive.
func DeleteArchive(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid archive id")
		return
	}

	deleted, err := archivesService.Delete(r.Context(), user.ID, id)
	if err != nil {
		log.Printf("deleteArchive %d failed for user %d: %v", id, user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete archive")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "Archive not found")
		return
	}
	respondOK(w, map[string]bool{"deleted": true})
}

// ListArchiveTags returns all distinct tags across the user's archives.
func ListArchiveTags(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tags, err := archivesService.Tags(r.Context(), user.ID)
	if err != nil {
		log.Printf("listArchiveTags failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list tags")
		return
	}
	respondOK(w, tags)
}

type renameTagRequest struct {
	OldTag string `json:"oldTag"`
	NewTag string `json:"newTag"`
}

// RenameArchiveTag renames a tag across all of the user's archives.
func RenameArchiveTag(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req renameTagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OldTag == "" || req.NewTag == "" {
		respondError(w, http.StatusBadRequest, "oldTag and newTag are required")
		return
	}

	count, err := archivesService.RenameTag(r.Context(), user.ID, req.OldTag, req.NewTag)
	if err != nil {
		log.Printf("renameArchiveTag failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to rename tag")
		return
	}
	respondOK(w, map[string]int64{"updatedCount": count})
}

type replaceTagsRequest struct {
	Tags []string `json:"tags"`
}

// ReplaceArchiveTags overwrites one archive's tag list.
func ReplaceArchiveTags(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid archive id")
		return
	}

	var req replaceTagsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	archive, err := archivesService.ReplaceTags(r.Context(), user.ID, id, req.Tags)
	if err != nil {
		log.Printf("replaceArchiveTags %d failed for user %d: %v", id, user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to replace tags")
		return
	}
	if archive == nil {
		respondError(w, http.StatusNotFound, "Archive not found")
		return
	}
	respondOK(w, archive)
}

// FilterArchivesByRelationship lists archives by relationship label. English
// aliases (family, friend, lover, colleague, other) are accepted.
func FilterArchivesByRelationship(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	relationship := chi.URLParam(r, "relationship")

	list, meta, err := archivesService.FilterByRelationship(r.Context(), user.ID, relationship, listOptionsFromQuery(r))
	if err != nil {
		log.Printf("filterArchives by relationship failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to filter archives")
		return
	}
	respondOK(w, archivePage{List: list, Meta: meta})
}

// FilterArchivesByTags lists archives carrying any of the given tags
// (comma-separated, substring matched).
func FilterArchivesByTags(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	tags := strings.Split(r.URL.Query().Get("tags"), ",")

	list, meta, err := archivesService.FilterByTags(r.Context(), user.ID, tags, listOptionsFromQuery(r))
	if err != nil {
		log.Printf("filterArchives by tags failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to filter archives")
		return
	}
	respondOK(w, archivePage{List: list, Meta: meta})
}

// SearchArchives matches the keyword against names, event names and dates.
func SearchArchives(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	keyword := r.URL.Query().Get("keyword")

	list, meta, err := archivesService.Search(r.Context(), user.ID, keyword, listOptionsFromQuery(r))
	if err != nil {
		log.Printf("searchArchives failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to search archives")
		return
	}
	respondOK(w, archivePage{List: list, Meta: meta})
}
