// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

/*
Package models defines the data structures shared by the postviews packages.

Key types:

  - Observation: one recorded view of a post, the unit stored in the view log
  - Source: the presentation context that produced an observation
  - SyncResult: outcome of a best-effort operation (Applied, LocalOnly, Failed, Skipped)
  - ViewStats, AnalyticsSummary, LocationLeaderboard: read-side aggregates
  - Remote*: wire DTOs for the backend /api/v1/post-views contract
  - APIResponse: envelope used by the local HTTP surface

Observations serialize with camelCase keys so a persisted log and the
backend payloads read the same way.
*/
package models
