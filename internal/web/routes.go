package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/faceid/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identifyHandler := handlers.NewIdentifyHandler(s.service)
	galleryHandler := handlers.NewGalleryHandler(s.service)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/identify", identifyHandler.Identify)

		// Gallery
		r.Get("/gallery", galleryHandler.List)
		r.Post("/gallery/sync", galleryHandler.Sync)
		r.Put("/gallery/{identity}", galleryHandler.Enroll)
		r.Get("/gallery/{identity}", galleryHandler.Get)
		r.Delete("/gallery/{identity}", galleryHandler.Delete)
		r.Get("/gallery/{identity}/neighbors", galleryHandler.Neighbors)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})
}
