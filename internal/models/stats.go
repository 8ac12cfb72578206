// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package models

import "time"

// ViewStats aggregates the views of one post.
type ViewStats struct {
	PostID          string           `json:"postId"`
	TotalViews      int64            `json:"totalViews"`
	UniqueViews     int64            `json:"uniqueViews"`
	ViewsBySource   map[Source]int64 `json:"viewsBySource"`
	AverageDuration float64          `json:"averageDuration"`

	// RecentViews holds the newest local observations, oldest first.
	RecentViews []Observation `json:"recentViews"`

	// Sync is Applied when remote values were merged in, LocalOnly otherwise.
	Sync SyncResult `json:"sync"`
}

// SourceCount is one row of a per-source breakdown.
type SourceCount struct {
	Source Source `json:"source"`
	Count  int64  `json:"count"`
}

// AnalyticsSummary aggregates the whole view log.
type AnalyticsSummary struct {
	TotalPosts          int64         `json:"totalPosts"`
	TotalViews          int64         `json:"totalViews"`
	AverageViewsPerPost float64       `json:"averageViewsPerPost"`
	TopSources          []SourceCount `json:"topSources"`
	ViewsToday          int64         `json:"viewsToday"`
	ViewsThisWeek       int64         `json:"viewsThisWeek"`
	Sync                SyncResult    `json:"sync"`
}

// LocationViewStats is one entry of the location leaderboard.
type LocationViewStats struct {
	LocationID    int64  `json:"locationId"`
	LocationName  string `json:"locationName"`
	ViewCount     int64  `json:"viewCount"`
	UniqueViewers int64  `json:"uniqueViewers"`

	// Placeholder marks built-in sample entries served while the backend is
	// unavailable. They are never persisted.
	Placeholder bool `json:"placeholder,omitempty"`
}

// LocationLeaderboard is the result of a top-locations query.
type LocationLeaderboard struct {
	Locations []LocationViewStats `json:"locations"`
	Fallback  bool                `json:"fallback"`
	Sync      SyncResult          `json:"sync"`
}

// ViewExport is a point-in-time dump of the view log.
type ViewExport struct {
	Views      []Observation    `json:"views"`
	Summary    AnalyticsSummary `json:"summary"`
	ExportedAt time.Time        `json:"exportedAt"`
}
