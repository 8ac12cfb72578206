// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/postviews/internal/middleware"
)

// BasePath prefixes every views route.
const BasePath = "/api/v1/views"

// NewRouter wires the views API, /health and /metrics.
//
// Global middleware, in order: request ID with logging context, real IP,
// panic recovery, CORS, Prometheus instrumentation. The views routes are
// additionally rate limited per IP.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(BasePath, func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Get("/posts", h.ListPosts)
		r.Route("/posts/{postId}", func(r chi.Router) {
			r.Get("/", h.GetPostView)
			r.Post("/", h.TrackView)
			r.Get("/stats", h.GetPostStats)
			r.Post("/sessions", h.StartSession)
			r.Delete("/sessions/{source}", h.EndSession)
			r.Post("/modal", h.OpenModal)
			r.Delete("/modal", h.CloseModal)
			r.Put("/visibility", h.EnterView)
			r.Delete("/visibility", h.ExitView)
		})
		r.Get("/recent", h.RecentViews)
		r.Get("/analytics", h.Analytics)
		r.Get("/locations/top", h.TopLocations)
		r.Get("/export", h.Export)
		r.Delete("/old", h.ClearOld)
		r.Delete("/all", h.ClearAll)
		r.Get("/ws", h.WebSocket)
	})

	return r
}
