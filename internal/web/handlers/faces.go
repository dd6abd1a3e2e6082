package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/faces"
)

// FacesHandler serves the face cluster endpoints.
type FacesHandler struct {
	service *faces.Service
	worker  faces.WorkerStatus
}

// NewFacesHandler creates a faces handler.
func NewFacesHandler(service *faces.Service, worker faces.WorkerStatus) *FacesHandler {
	return &FacesHandler{service: service, worker: worker}
}

// faceResponse is the API shape of one identity.
type faceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	PhotoCount int    `json:"photo_count"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func toFaceResponse(ident *database.Identity) faceResponse {
	resp := faceResponse{
		ID:         ident.ID,
		Name:       ident.Name,
		PhotoCount: ident.PhotoCount,
	}
	if !ident.CreatedAt.IsZero() {
		resp.CreatedAt = ident.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

// List handles GET /faces - list face clusters (persons).
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := database.ListOptions{
		NamedOnly: r.URL.Query().Get("named_only") == "true",
		MinPhotos: queryInt(r, "min_photos", 1),
		Limit:     queryInt(r, "limit", 100),
	}

	identities, err := h.service.List(r.Context(), opts)
	if err != nil {
		log.Printf("failed to list faces: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list faces")
		return
	}

	out := make([]faceResponse, 0, len(identities))
	for i := range identities {
		out = append(out, toFaceResponse(&identities[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"faces": out,
		"total": len(out),
	})
}

// occurrenceResponse is the API shape of one face occurrence in a photo.
type occurrenceResponse struct {
	PhotoID    string     `json:"photo_id"`
	BBox       [4]float64 `json:"bbox"`
	Confidence float64    `json:"confidence"`
}

// Photos handles GET /faces/{id}/photos - photos containing a face.
func (h *FacesHandler) Photos(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ident, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "face not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load face")
		return
	}

	occs, err := h.service.PhotosOf(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load photos")
		return
	}

	out := make([]occurrenceResponse, 0, len(occs))
	for _, occ := range occs {
		out = append(out, occurrenceResponse{
			PhotoID:    occ.PhotoID,
			BBox:       occ.BBox,
			Confidence: occ.Confidence,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"face":   toFaceResponse(ident),
		"photos": out,
	})
}

// renameRequest is the body of PATCH /faces/{id}.
type renameRequest struct {
	Name string `json:"name"`
}

// Rename handles PATCH /faces/{id} - assign a name to a face cluster.
func (h *FacesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	ident, err := h.service.Rename(r.Context(), id, req.Name)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "face not found")
			return
		}
		log.Printf("failed to rename face %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to rename face")
		return
	}

	respondJSON(w, http.StatusOK, toFaceResponse(ident))
}

// mergeRequest is the body of POST /faces/{id}/merge.
type mergeRequest struct {
	SourceFaceIDs []string `json:"source_face_ids"`
}

// Merge handles POST /faces/{id}/merge - merge face clusters into this one.
func (h *FacesHandler) Merge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	result, err := h.service.Merge(r.Context(), id, req.SourceFaceIDs)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "target face not found")
			return
		}
		log.Printf("failed to merge into face %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to merge faces")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":          result.ID,
		"name":        result.Name,
		"photo_count": result.PhotoCount,
		"merged":      result.Merged,
	})
}

// Recluster handles POST /faces/recluster - re-run face clustering.
func (h *FacesHandler) Recluster(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Recluster(r.Context())
	if err != nil {
		log.Printf("recluster failed: %v", err)
		respondError(w, http.StatusInternalServerError, "recluster failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"groups_found": result.Groups,
		"total_merged": result.Merged,
	})
}

// Search handles GET /faces/search?name= - find named faces.
func (h *FacesHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	identities, err := h.service.SearchByName(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	out := make([]faceResponse, 0, len(identities))
	for i := range identities {
		out = append(out, toFaceResponse(&identities[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"faces": out,
		"total": len(out),
	})
}

// Status handles GET /faces/status - pipeline availability and counts.
func (h *FacesHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context(), h.worker)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// queryInt parses a positive integer query parameter with a default.
func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}
