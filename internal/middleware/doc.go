// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package middleware holds HTTP middleware shared by the API router:
// request ID propagation into the logging context and Prometheus request
// instrumentation. Both have the chi signature func(http.Handler) http.Handler.
package middleware
