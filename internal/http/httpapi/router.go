package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"storyscenes/internal/http/handlers"
	"storyscenes/internal/middleware"
)

// NewRouter assembles the HTTP surface: batch endpoints, single-scene
// regeneration, health probe, and the static file server for generated
// images. countryLookup may be nil when no GeoIP database is configured.
func NewRouter(app *handlers.App, countryLookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(app.Config.CORSAllowedOrigins))
	r.Use(middleware.Locale(app.Config.DefaultLocale, countryLookup))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))
			r.Post("/batches", app.StartBatch)
			r.Post("/scenes", app.GenerateScene)
		})

		r.Get("/batches/{batch_id}", app.BatchStatus)
	})

	if app.Config.StoragePath != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Config.StoragePath)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}

	return r
}
