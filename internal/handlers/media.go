package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Adjaraux/academy-backend/internal/services"
)

// MediaHandler serves lesson media behind short-lived signed tokens issued
// when a lesson is opened. No token, no bytes.
type MediaHandler struct {
	media       *services.MediaService
	storagePath string
}

func NewMediaHandler(media *services.MediaService, storagePath string) *MediaHandler {
	return &MediaHandler{media: media, storagePath: storagePath}
}

func (h *MediaHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing playback token", r))
		return
	}

	mediaRef, _, err := h.media.VerifyToken(token)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// media_ref is a storage-relative path; keep it inside the storage root.
	clean := filepath.Clean("/" + mediaRef)
	if strings.Contains(clean, "..") {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid media reference", r))
		return
	}

	http.ServeFile(w, r, filepath.Join(h.storagePath, clean))
}
