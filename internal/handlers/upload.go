package handlers

import (
	"context"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/giftmind/giftmind-backend/internal/middleware"
)

// avatarUploader is the slice of the Cloudinary service the upload handler
// needs. Tests substitute a fake.
type avatarUploader interface {
	UploadAvatarFromHeader(ctx context.Context, fileHeader *multipart.FileHeader) (string, error)
}

// UploadAvatar uploads the user's avatar image and returns its URL.
// Expects a multipart form with a "file" field, max 10MB.
func UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if cloudinaryService == nil {
		respondError(w, http.StatusServiceUnavailable, "Upload service not configured")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file provided")
		return
	}
	// The upload re-opens the header; this handle must still be released.
	defer file.Close()

	url, err := cloudinaryService.UploadAvatarFromHeader(r.Context(), fileHeader)
	if err != nil {
		log.Printf("uploadAvatar failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	respondOK(w, map[string]string{"url": url})
}
