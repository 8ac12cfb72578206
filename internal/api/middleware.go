// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/postviews/internal/config"
	"github.com/tomtom215/postviews/internal/logging"
)

// ChiMiddlewareConfig holds CORS and rate limit settings.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSExposedHeaders []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns restrictive defaults: no CORS origins
// and 100 requests per minute per IP.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSExposedHeaders: []string{"X-Request-ID"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// MiddlewareConfigFromServer maps server settings onto the defaults. A
// non-positive rate limit disables rate limiting.
func MiddlewareConfigFromServer(cfg config.ServerConfig) *ChiMiddlewareConfig {
	mc := DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.RateLimit > 0 {
		mc.RateLimitRequests = cfg.RateLimit
	} else {
		mc.RateLimitDisabled = true
	}
	if cfg.RateLimitWindow > 0 {
		mc.RateLimitWindow = cfg.RateLimitWindow
	}
	return mc
}

// ChiMiddleware builds the CORS and rate limit handlers.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware set. A nil config uses defaults.
func NewChiMiddleware(cfg *ChiMiddlewareConfig) *ChiMiddleware {
	if cfg == nil {
		cfg = DefaultChiMiddlewareConfig()
	}

	return &ChiMiddleware{
		config: cfg,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: cfg.CORSAllowedMethods,
			AllowedHeaders: cfg.CORSAllowedHeaders,
			ExposedHeaders: cfg.CORSExposedHeaders,
			MaxAge:         cfg.CORSMaxAge,
		}),
	}
}

// CORS returns the CORS handler. It must be global so OPTIONS preflights
// are answered before routing.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit limits requests per client IP. Run it after chi's RealIP.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logging.Ctx(r.Context()).Warn().Str("remote_addr", r.RemoteAddr).Msg("rate limit exceeded")
			respondError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded", nil)
		}),
	)
}
