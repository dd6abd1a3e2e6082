package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mhoracek/homeframe/internal/database"
)

// Enqueuer accepts photos for background face processing.
type Enqueuer interface {
	Enqueue(photoID string)
	Available() bool
	QueueDepth() int
}

// PhotosHandler serves photo processing endpoints.
type PhotosHandler struct {
	photos database.PhotoStore
	worker Enqueuer
}

// NewPhotosHandler creates a photos handler.
func NewPhotosHandler(photos database.PhotoStore, worker Enqueuer) *PhotosHandler {
	return &PhotosHandler{photos: photos, worker: worker}
}

// Process handles POST /photos/{id}/process - queue a photo for face detection.
func (h *PhotosHandler) Process(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.photos.GetPhoto(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "photo not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}

	if !h.worker.Available() {
		respondError(w, http.StatusServiceUnavailable, "face processing is not available")
		return
	}

	h.worker.Enqueue(id)
	respondJSON(w, http.StatusAccepted, map[string]any{
		"queued":      true,
		"queue_depth": h.worker.QueueDepth(),
	})
}
