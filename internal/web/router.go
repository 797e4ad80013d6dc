package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/engine"
)

func NewRouter(cfg *config.Config, handlers *Handlers, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(zapLogger(logger, "/health", cfg.Metrics.Path))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// Public routes
	r.Get("/ping", handlers.Ping)
	r.Get("/health", handlers.HealthCheck)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(engine.Registry, promhttp.HandlerOpts{}))
	}

	// Stateless endpoints used by the mobile client
	r.Post("/generateStory", handlers.GenerateStory)
	r.Post("/generateCharacterBio", handlers.GenerateCharacterBio)
	r.Post("/generateStoryHooks", handlers.GenerateStoryHooks)

	r.Get("/api/v1/templates", handlers.ListTemplates)
	r.Get("/api/v1/templates/{name}", handlers.ExportTemplate)

	r.Route("/api/v1/stories", func(r chi.Router) {
		r.Post("/", handlers.CreateStory)
		r.Get("/", handlers.ListStories)
		r.Post("/import", handlers.ImportStory)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.GetStory)
			r.Delete("/", handlers.DeleteStory)
			r.Post("/continue", handlers.ContinueStory)
			r.Get("/export", handlers.ExportStory)
			r.Get("/ws", handlers.SubscribeStory)
		})
	})

	return r
}
