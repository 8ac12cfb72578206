// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"sort"

	"github.com/tomtom215/postviews/internal/models"
)

// HasViewed reports whether the log holds any observation of postID.
func (e *Engine) HasViewed(postID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index[postID] > 0
}

// GetViewCount returns the number of logged observations of postID.
func (e *Engine) GetViewCount(postID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index[postID]
}

// GetViewedPosts returns the distinct post IDs in the log, sorted.
func (e *Engine) GetViewedPosts() []string {
	e.mu.Lock()
	posts := make([]string, 0, len(e.index))
	for id := range e.index {
		posts = append(posts, id)
	}
	e.mu.Unlock()

	sort.Strings(posts)
	return posts
}

// GetRecentViews returns up to limit observations, newest first. A
// non-positive limit uses the configured default.
func (e *Engine) GetRecentViews(limit int) []models.Observation {
	if limit <= 0 {
		limit = e.cfg.RecentLimit
	}
	views := e.Snapshot()
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].ViewedAt.After(views[j].ViewedAt)
	})
	if len(views) > limit {
		views = views[:limit]
	}
	return views
}

// OpenSessions returns the number of open sessions of both kinds.
func (e *Engine) OpenSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.modal) + len(e.sessions)
}
