// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

/*
Package api exposes the view-tracking engine over HTTP using the chi router.

Routes under /api/v1/views:

	POST   /posts/{postId}                    record a view {source, userId}
	GET    /posts/{postId}                    viewed flag and count
	GET    /posts/{postId}/stats              per-post stats
	POST   /posts/{postId}/sessions           open a post+source session {source}
	DELETE /posts/{postId}/sessions/{source}  close it, returns durationMs
	POST   /posts/{postId}/modal              open a modal view session {source?, userId}
	DELETE /posts/{postId}/modal              close it, returns durationMs
	PUT    /posts/{postId}/visibility         post entered the viewport
	DELETE /posts/{postId}/visibility         post left the viewport
	GET    /posts                             distinct viewed post IDs
	GET    /recent?limit=N                    newest observations
	GET    /analytics                         analytics summary
	GET    /locations/top?limit=N             location leaderboard
	GET    /export                            full log with summary
	DELETE /old                               purge past retention
	DELETE /all                               purge everything
	GET    /ws                                live post_viewed stream

Plus /health and /metrics. Every JSON response uses the models.APIResponse
envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"...","query_time_ms":0}}
	{"status":"error","data":null,"metadata":{...},"error":{"code":"NOT_FOUND","message":"..."}}

Engine operations never fail on backend errors, so handlers only return
errors for malformed input, missing sessions and local store failures.
*/
package api
