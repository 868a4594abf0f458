package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/rankpush/internal/pkg/httputil"
)

// Handlers groups the route handlers the router mounts.
type Handlers struct {
	Campaigns *CampaignHandler
	Apps      *AppHandler
	Risk      *RiskHandler
}

// SetupRoutes configures the router: middleware, CORS, health, and all
// /api route groups.
func SetupRoutes(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HandleHealth)
		h.Campaigns.RegisterRoutes(r)
		h.Apps.RegisterRoutes(r)
		h.Risk.RegisterRoutes(r)
	})

	return r
}

// HandleHealth reports liveness.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
