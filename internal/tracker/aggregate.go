// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
)

// Merge rule for remote aggregates: a remote field wins when the call
// succeeded and the value is present and non-zero.

func preferInt(remote *int64, local int64) int64 {
	if remote != nil && *remote != 0 {
		return *remote
	}
	return local
}

func preferFloat(remote *float64, local float64) float64 {
	if remote != nil && *remote != 0 {
		return *remote
	}
	return local
}

func toSourceMap(m map[string]int64) map[models.Source]int64 {
	out := make(map[models.Source]int64, len(m))
	for k, v := range m {
		out[models.Source(k)] = v
	}
	return out
}

// topSources ranks counts descending, ties by source name.
func topSources(counts map[models.Source]int64, n int) []models.SourceCount {
	out := make([]models.SourceCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, models.SourceCount{Source: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// localPostStats computes the stats of postID from the log alone.
func (e *Engine) localPostStats(postID string) models.ViewStats {
	views := e.Snapshot()

	stats := models.ViewStats{
		PostID:        postID,
		ViewsBySource: make(map[models.Source]int64),
		RecentViews:   []models.Observation{},
		Sync:          models.LocalOnly,
	}
	users := make(map[string]struct{})
	var durationSum, durationCount int64
	var mine []models.Observation

	for _, v := range views {
		if v.PostID != postID {
			continue
		}
		mine = append(mine, v)
		stats.TotalViews++
		stats.ViewsBySource[v.Source]++
		if v.UserID != "" {
			users[v.UserID] = struct{}{}
		}
		if v.DurationMs != nil {
			durationSum += *v.DurationMs
			durationCount++
		}
	}
	stats.UniqueViews = int64(len(users))
	if durationCount > 0 {
		stats.AverageDuration = float64(durationSum) / float64(durationCount)
	}
	if n := len(mine) - e.cfg.StatsRecent; n > 0 {
		mine = mine[n:]
	}
	if mine != nil {
		stats.RecentViews = mine
	}
	return stats
}

// GetPostViewStats returns per-post stats, merging the backend's aggregate
// over the local one when it is reachable. RecentViews is always local.
func (e *Engine) GetPostViewStats(ctx context.Context, postID string) models.ViewStats {
	stats := e.localPostStats(postID)
	if postID == "" || e.remote == nil {
		return stats
	}

	cctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()
	rs, err := e.remote.PostStats(cctx, postID)
	if err != nil || rs == nil {
		e.log.Warn().Err(err).Str("post_id", postID).Msg("backend stats unavailable, using local only")
		return stats
	}

	stats.TotalViews = preferInt(rs.TotalViews, stats.TotalViews)
	stats.UniqueViews = preferInt(rs.UniqueViews, stats.UniqueViews)
	if len(rs.ViewsBySource) > 0 {
		stats.ViewsBySource = toSourceMap(rs.ViewsBySource)
	}
	stats.AverageDuration = preferFloat(rs.AverageDuration, stats.AverageDuration)
	stats.Sync = models.Applied
	return stats
}

// dayBounds returns local midnight today and seven days before it.
func dayBounds(now time.Time) (today, week time.Time) {
	today = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today, today.Add(-7 * 24 * time.Hour)
}

func (e *Engine) localSummary() models.AnalyticsSummary {
	e.mu.Lock()
	now := e.now()
	posts := int64(len(e.index))
	total := int64(len(e.views))
	today, week := dayBounds(now)
	counts := make(map[models.Source]int64)
	var viewsToday, viewsWeek int64
	for _, v := range e.views {
		counts[v.Source]++
		if !v.ViewedAt.Before(today) {
			viewsToday++
		}
		if !v.ViewedAt.Before(week) {
			viewsWeek++
		}
	}
	e.mu.Unlock()

	s := models.AnalyticsSummary{
		TotalPosts:    posts,
		TotalViews:    total,
		TopSources:    topSources(counts, e.cfg.TopSources),
		ViewsToday:    viewsToday,
		ViewsThisWeek: viewsWeek,
		Sync:          models.LocalOnly,
	}
	if posts > 0 {
		s.AverageViewsPerPost = float64(total) / float64(posts)
	}
	return s
}

// GetAnalyticsSummary aggregates the whole log and merges the backend's
// analytics over it when reachable.
func (e *Engine) GetAnalyticsSummary(ctx context.Context) models.AnalyticsSummary {
	s := e.localSummary()
	if e.remote == nil {
		return s
	}

	cctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()
	ra, err := e.remote.Analytics(cctx)
	if err != nil || ra == nil {
		e.log.Warn().Err(err).Msg("backend analytics unavailable, using local only")
		return s
	}

	s.TotalPosts = preferInt(ra.TotalPosts, s.TotalPosts)
	s.TotalViews = preferInt(ra.TotalViews, s.TotalViews)
	s.AverageViewsPerPost = preferFloat(ra.AverageViewsPerPost, s.AverageViewsPerPost)
	switch {
	case len(ra.TopSources) > 0:
		s.TopSources = ra.TopSources
		if len(s.TopSources) > e.cfg.TopSources {
			s.TopSources = s.TopSources[:e.cfg.TopSources]
		}
	case len(ra.ViewsBySource) > 0:
		s.TopSources = topSources(toSourceMap(ra.ViewsBySource), e.cfg.TopSources)
	}
	s.ViewsToday = preferInt(ra.ViewsToday, s.ViewsToday)
	s.ViewsThisWeek = preferInt(ra.ViewsThisWeek, s.ViewsThisWeek)
	s.Sync = models.Applied
	return s
}

// fallbackLocations is served while the backend leaderboard is
// unavailable. Entries are flagged Placeholder.
var fallbackLocations = []models.LocationViewStats{
	{LocationID: 1, LocationName: "Hà Nội", ViewCount: 150, UniqueViewers: 45},
	{LocationID: 2, LocationName: "Hồ Chí Minh", ViewCount: 120, UniqueViewers: 38},
	{LocationID: 4, LocationName: "Đà Nẵng", ViewCount: 89, UniqueViewers: 32},
	{LocationID: 3, LocationName: "Hải Phòng", ViewCount: 67, UniqueViewers: 25},
	{LocationID: 5, LocationName: "Cần Thơ", ViewCount: 54, UniqueViewers: 22},
}

// FallbackLocations returns the placeholder leaderboard truncated to limit.
func FallbackLocations(limit int) []models.LocationViewStats {
	if limit <= 0 || limit > len(fallbackLocations) {
		limit = len(fallbackLocations)
	}
	out := make([]models.LocationViewStats, limit)
	copy(out, fallbackLocations[:limit])
	for i := range out {
		out[i].Placeholder = true
	}
	return out
}

// GetTopLocationsByViews returns the backend leaderboard, or the placeholder
// list on any failure or an empty answer. The result is never empty and
// holds at most limit entries (default 5).
func (e *Engine) GetTopLocationsByViews(ctx context.Context, limit int) models.LocationLeaderboard {
	if limit <= 0 {
		limit = DefaultLocationLimit
	}

	if e.remote != nil {
		cctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
		locs, err := e.remote.TopLocations(cctx, limit)
		cancel()
		if err == nil && len(locs) > 0 {
			if len(locs) > limit {
				locs = locs[:limit]
			}
			out := make([]models.LocationViewStats, len(locs))
			for i, l := range locs {
				out[i] = models.LocationViewStats{
					LocationID:    l.LocationID,
					LocationName:  l.LocationName,
					ViewCount:     l.ViewCount,
					UniqueViewers: l.UniqueViewers,
				}
			}
			return models.LocationLeaderboard{Locations: out, Sync: models.Applied}
		}
		e.log.Warn().Err(err).Int("returned", len(locs)).Msg("top locations unavailable, serving placeholder data")
	}

	metrics.FallbackServed.Inc()
	return models.LocationLeaderboard{
		Locations: FallbackLocations(limit),
		Fallback:  true,
		Sync:      models.LocalOnly,
	}
}
