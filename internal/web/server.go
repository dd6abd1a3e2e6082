package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/faces"
	"github.com/mhoracek/homeframe/internal/web/handlers"
	"github.com/mhoracek/homeframe/internal/web/middleware"
)

// Worker is the background face pipeline as seen by the API.
type Worker interface {
	handlers.Enqueuer
}

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	service    *faces.Service
	photos     database.PhotoStore
	worker     Worker
}

// NewServer creates a new web server
func NewServer(service *faces.Service, photos database.PhotoStore, worker Worker, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:  r,
		service: service,
		photos:  photos,
		worker:  worker,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
