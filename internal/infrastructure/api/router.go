package api

import (
	"net/http"

	"archie-core-shopee-layer/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig holds what the router serves besides the sync endpoints
type RouterConfig struct {
	// MetricsHandler is mounted at /metrics when set
	MetricsHandler http.Handler
	// SwaggerFile is the OpenAPI document served at /swagger/doc.json
	SwaggerFile string
}

// NewRouter builds the HTTP surface of the service
func NewRouter(syncHandler *SyncHandler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, cfg.SwaggerFile)
	})

	// every method reaches the handler so unsupported ones get the JSON 405
	r.HandleFunc("/sync/orders", syncHandler.Handle(domain.EntityKindOrder))
	r.HandleFunc("/sync/items", syncHandler.Handle(domain.EntityKindItem))

	return r
}

// requestLogger logs one line per request with the chi request id
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Msg("Request served")
		})
	}
}
