package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func SetupRoutes(handler *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	for _, middleware := range SetupMiddleware() {
		r.Use(middleware)
	}

	// JSON content type
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Health check endpoint
	r.Get("/health", handler.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cache", handler.GetCacheStats)
		r.Get("/chunks/{x}/{y}/{z}", handler.GetChunk)
		r.Get("/columns/{x}/{z}", handler.GetColumn)
		r.Get("/blocks/{x}/{y}/{z}", handler.GetBlock)
		r.Get("/anchors", handler.ListAnchors)

		// Mutating routes hold the cache or the store for a while
		r.With(ThrottleMiddleware(4)).Group(func(r chi.Router) {
			r.Put("/blocks/{x}/{y}/{z}", handler.SetBlock)
			r.Put("/anchors/{name}", handler.WatchAnchor)
			r.Delete("/anchors/{name}", handler.UnwatchAnchor)
			r.Post("/generate", handler.Generate)
			r.Post("/flush", handler.Flush)
		})
	})

	return r
}
