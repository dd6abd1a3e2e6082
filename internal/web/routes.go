package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/mhoracek/homeframe/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(s.service, s.worker)
	photosHandler := handlers.NewPhotosHandler(s.photos, s.worker)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Faces
		r.Get("/faces", facesHandler.List)
		r.Get("/faces/status", facesHandler.Status)
		r.Get("/faces/search", facesHandler.Search)
		r.Post("/faces/recluster", facesHandler.Recluster)
		r.Get("/faces/{id}/photos", facesHandler.Photos)
		r.Patch("/faces/{id}", facesHandler.Rename)
		r.Post("/faces/{id}/merge", facesHandler.Merge)

		// Photos
		r.Post("/photos/{id}/process", photosHandler.Process)
	})
}
