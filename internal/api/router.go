// Package api assembles the HTTP router and its middleware chain.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vitaliisemenov/msg-store/internal/api/handlers"
	"github.com/vitaliisemenov/msg-store/internal/api/middleware"
	"github.com/vitaliisemenov/msg-store/internal/config"
	"github.com/vitaliisemenov/msg-store/internal/core"
	"github.com/vitaliisemenov/msg-store/pkg/metrics"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Store  *core.Store
	Config *config.Config
	Logger *slog.Logger

	EnableMetrics   bool
	EnableRateLimit bool
	// Rate limit configuration (requests per minute, burst)
	RateLimitPerMinute int
	RateLimitBurst     int

	HTTPMetrics *metrics.HTTPMetrics
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig(store *core.Store, cfg *config.Config, logger *slog.Logger) RouterConfig {
	return RouterConfig{
		Store:              store,
		Config:             cfg,
		Logger:             logger,
		EnableMetrics:      true,
		EnableRateLimit:    false,
		RateLimitPerMinute: 600,
		RateLimitBurst:     60,
	}
}

// NewRouter creates the API router with all middleware configured.
//
// The middleware stack is applied in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Recovery (always)
//  4. Metrics (if enabled)
//  5. RateLimit (if enabled)
func NewRouter(rc RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(rc.Logger))
	router.Use(middleware.RecoveryMiddleware(rc.Logger))

	if rc.EnableMetrics {
		m := rc.HTTPMetrics
		if m == nil {
			m = metrics.NewHTTPMetrics()
		}
		router.Use(m.Middleware)
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	if rc.EnableRateLimit {
		router.Use(middleware.RateLimitMiddleware(rc.RateLimitPerMinute, rc.RateLimitBurst))
	}

	h := handlers.New(rc.Store, rc.Config, rc.Logger)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/msg", h.AddMsg).Methods(http.MethodPost)
	api.HandleFunc("/msg", h.GetMsg).Methods(http.MethodGet)
	api.HandleFunc("/msg", h.DeleteMsg).Methods(http.MethodDelete)

	api.HandleFunc("/group", h.GetGroup).Methods(http.MethodGet)
	api.HandleFunc("/group", h.DeleteGroup).Methods(http.MethodDelete)

	api.HandleFunc("/group-defaults", h.GetGroupDefaults).Methods(http.MethodGet)
	api.HandleFunc("/group-defaults", h.SetGroupDefaults).Methods(http.MethodPost)
	api.HandleFunc("/group-defaults", h.DeleteGroupDefaults).Methods(http.MethodDelete)

	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.UpdateStats).Methods(http.MethodPut)
	api.HandleFunc("/stats", h.ResetStats).Methods(http.MethodDelete)

	api.HandleFunc("/store", h.GetStore).Methods(http.MethodGet)
	api.HandleFunc("/store", h.UpdateStore).Methods(http.MethodPut)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	return router
}
