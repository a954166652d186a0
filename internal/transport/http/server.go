// Package http exposes the persisted pipeline tables and on-demand
// analytics views to the visualization frontend over a read-only JSON API.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"aadhaarpulse/internal/config"
)

// NewServer builds the HTTP server for the serve surface.
func NewServer(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *http.Server {
	h := NewHandler(cfg, paths, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	if cfg.Server.RateLimit.Enabled {
		r.Use(rateLimiter(cfg.Server.RateLimit))
	}

	r.Mount("/api", h.Routes())
	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// rateLimiter applies a global token bucket to the API. The frontend polls
// a handful of endpoints; anything past the configured rate is shed early.
func rateLimiter(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]string{
					"error_code": "RATE_LIMIT_EXCEEDED",
					"message":    "Rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// healthResponse is the payload for the health endpoint.
type healthResponse struct {
	Status  string    `json:"status"`
	Time    time.Time `json:"time"`
	Version string    `json:"version"`
}
