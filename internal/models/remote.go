// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package models

// Wire types for the backend /api/v1/post-views contract. Counters are
// pointers so an absent field can be told apart from a zero value.

// RemoteViewRequest is the body of POST and PUT /posts/{postId}.
type RemoteViewRequest struct {
	ViewSource Source `json:"viewSource"`
	DurationMs *int64 `json:"durationMs,omitempty"`
	SessionID  string `json:"sessionId"`
}

// RemoteView is the observation record echoed by the backend.
type RemoteView struct {
	ID         *int64 `json:"id,omitempty"`
	PostID     *int64 `json:"postId,omitempty"`
	UserID     *int64 `json:"userId,omitempty"`
	ViewSource string `json:"viewSource"`
	DurationMs *int64 `json:"durationMs,omitempty"`
	// ViewedAt is a zone-less LocalDateTime on the backend; kept verbatim.
	ViewedAt  string `json:"viewedAt,omitempty"`
	SessionID string `json:"sessionId"`
}

// RemotePostStats is the body of GET /posts/{postId}/stats.
type RemotePostStats struct {
	TotalViews      *int64           `json:"totalViews"`
	UniqueViews     *int64           `json:"uniqueViews"`
	ViewsBySource   map[string]int64 `json:"viewsBySource"`
	AverageDuration *float64         `json:"averageDuration"`
}

// RemoteAnalytics is the body of GET /analytics. The backend reports a
// viewsBySource map; newer deployments also send topSources.
type RemoteAnalytics struct {
	TotalPosts          *int64           `json:"totalPosts"`
	TotalViews          *int64           `json:"totalViews"`
	AverageViewsPerPost *float64         `json:"averageViewsPerPost"`
	TopSources          []SourceCount    `json:"topSources"`
	ViewsBySource       map[string]int64 `json:"viewsBySource"`
	ViewsToday          *int64           `json:"viewsToday"`
	ViewsThisWeek       *int64           `json:"viewsThisWeek"`
}

// RemoteLocation is one element of GET /locations/top.
type RemoteLocation struct {
	LocationID    int64  `json:"locationId"`
	LocationName  string `json:"locationName"`
	ViewCount     int64  `json:"viewCount"`
	UniqueViewers int64  `json:"uniqueViewers"`
}
