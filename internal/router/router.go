package router

import (
	"cellarsync/internal/handler"
	"cellarsync/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	ScannerHandler   *handler.ScannerHandler
	SessionHandler   *handler.SessionHandler
	InventoryHandler *handler.InventoryHandler
	SyncHandler      *handler.SyncHandler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Unified status endpoint for monitoring
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.ScannerHandler != nil {
			r.Route("/scanner", func(r chi.Router) {
				r.Post("/detections", cfg.ScannerHandler.PostDetection)
				r.Get("/state", cfg.ScannerHandler.GetState)
				r.Post("/reset", cfg.ScannerHandler.Reset)
				r.Put("/mode", cfg.ScannerHandler.SetMode)
			})
		}

		if cfg.SessionHandler != nil {
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", cfg.SessionHandler.Start)
				r.Get("/", cfg.SessionHandler.Get)
				r.Post("/end", cfg.SessionHandler.End)
				r.Post("/confirm", cfg.SessionHandler.Confirm)
				r.Post("/manual", cfg.SessionHandler.Manual)
				r.Post("/link", cfg.SessionHandler.Link)
			})
		}

		if cfg.InventoryHandler != nil {
			r.Route("/barcodes/{code}", func(r chi.Router) {
				r.Get("/", cfg.InventoryHandler.LookupBarcode)
				r.Get("/search", cfg.InventoryHandler.SearchBarcode)
			})
			r.Post("/inventory/{id}/increment", cfg.InventoryHandler.Increment)
			r.Get("/inventory/{kind}/{ref}/count", cfg.InventoryHandler.Count)
			r.Post("/photos", cfg.InventoryHandler.UploadPhoto)
		}

		if cfg.SyncHandler != nil {
			r.Get("/queue", cfg.SyncHandler.GetQueue)
			r.Delete("/queue", cfg.SyncHandler.ClearQueue)
			r.Post("/sync", cfg.SyncHandler.TriggerSync)
			r.Get("/network", cfg.SyncHandler.GetNetwork)
		}
	})

	return r
}
