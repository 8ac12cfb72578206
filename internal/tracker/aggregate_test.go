// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/store"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func TestGetPostViewStatsLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), nil)

	e.TrackView(ctx, "p", models.SourceFeed, "u1")
	e.TrackView(ctx, "p", models.SourceSearch, "u2")
	e.TrackView(ctx, "q", models.SourceFeed, "u1")
	e.StartViewSession("p", models.SourceFeed)
	clock.Advance(400 * time.Millisecond)
	e.EndViewSession(ctx, "p", models.SourceFeed)

	s := e.GetPostViewStats(ctx, "p")
	if s.TotalViews != 2 || s.UniqueViews != 2 {
		t.Errorf("total/unique = %d/%d, want 2/2", s.TotalViews, s.UniqueViews)
	}
	if s.ViewsBySource[models.SourceFeed] != 1 || s.ViewsBySource[models.SourceSearch] != 1 {
		t.Errorf("ViewsBySource = %v", s.ViewsBySource)
	}
	if s.AverageDuration != 400 {
		t.Errorf("AverageDuration = %v, want 400", s.AverageDuration)
	}
	if len(s.RecentViews) != 2 || s.Sync != models.LocalOnly {
		t.Errorf("RecentViews = %d, Sync = %v", len(s.RecentViews), s.Sync)
	}

	empty := e.GetPostViewStats(ctx, "never")
	if empty.TotalViews != 0 || empty.RecentViews == nil || empty.ViewsBySource == nil {
		t.Errorf("unknown post stats = %+v", empty)
	}
}

func TestGetPostViewStatsRecentViewsCapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), nil)

	for i := 0; i < 15; i++ {
		e.TrackView(ctx, "p", models.SourceFeed, "")
		clock.Advance(6 * time.Minute)
	}
	s := e.GetPostViewStats(ctx, "p")
	if s.TotalViews != 15 || len(s.RecentViews) != 10 {
		t.Errorf("total = %d, recent = %d; want 15, 10", s.TotalViews, len(s.RecentViews))
	}
}

func TestGetPostViewStatsMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name      string
		remote    *fakeRemote
		wantTotal int64
		wantSync  models.SyncResult
	}{
		{"remote wins", &fakeRemote{stats: &models.RemotePostStats{TotalViews: i64(99)}}, 99, models.Applied},
		{"remote zero keeps local", &fakeRemote{stats: &models.RemotePostStats{TotalViews: i64(0)}}, 1, models.Applied},
		{"remote missing keeps local", &fakeRemote{stats: &models.RemotePostStats{}}, 1, models.Applied},
		{"remote down", &fakeRemote{err: errBackendDown}, 1, models.LocalOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _ := newTestEngine(t, store.NewMemoryStore(), tt.remote)
			e.TrackView(ctx, "p", models.SourceFeed, "u1")

			s := e.GetPostViewStats(ctx, "p")
			if s.TotalViews != tt.wantTotal || s.Sync != tt.wantSync {
				t.Errorf("TotalViews/Sync = %d/%v, want %d/%v", s.TotalViews, s.Sync, tt.wantTotal, tt.wantSync)
			}
			if len(s.RecentViews) != 1 {
				t.Errorf("RecentViews should stay local, got %d", len(s.RecentViews))
			}
		})
	}
}

func TestGetPostViewStatsRemoteSources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rc := &fakeRemote{stats: &models.RemotePostStats{
		UniqueViews:     i64(7),
		ViewsBySource:   map[string]int64{"feed": 30, "modal": 12},
		AverageDuration: f64(1234.5),
	}}
	e, _ := newTestEngine(t, store.NewMemoryStore(), rc)
	e.TrackView(ctx, "p", models.SourceSearch, "")

	s := e.GetPostViewStats(ctx, "p")
	if s.UniqueViews != 7 || s.AverageDuration != 1234.5 {
		t.Errorf("unique/avg = %d/%v", s.UniqueViews, s.AverageDuration)
	}
	if s.ViewsBySource[models.SourceFeed] != 30 || s.ViewsBySource[models.SourceSearch] != 0 {
		t.Errorf("ViewsBySource = %v, want remote map", s.ViewsBySource)
	}
}

// seedStore returns a store holding views at the given offsets from the
// fake clock's start.
func seedStore(t *testing.T, offsets map[string]time.Duration) *store.MemoryStore {
	t.Helper()
	start := newFakeClock().Now()
	var views []models.Observation
	for postID, off := range offsets {
		views = append(views, models.Observation{
			PostID:    postID,
			ViewedAt:  start.Add(-off),
			Source:    models.SourceFeed,
			SessionID: postID + "-session",
		})
	}
	st := store.NewMemoryStore()
	if err := st.Save(context.Background(), views); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestAnalyticsSummaryWindows(t *testing.T) {
	t.Parallel()

	// The clock starts at 15:30 local time.
	st := seedStore(t, map[string]time.Duration{
		"old":       10 * 24 * time.Hour,
		"this-week": 3 * 24 * time.Hour,
		"yesterday": 16 * time.Hour,
		"today":     15 * time.Hour,
	})
	e, _ := newTestEngine(t, st, nil)

	s := e.GetAnalyticsSummary(context.Background())
	if s.TotalPosts != 4 || s.TotalViews != 4 {
		t.Errorf("posts/views = %d/%d, want 4/4", s.TotalPosts, s.TotalViews)
	}
	if s.ViewsToday != 1 {
		t.Errorf("ViewsToday = %d, want 1", s.ViewsToday)
	}
	if s.ViewsThisWeek != 3 {
		t.Errorf("ViewsThisWeek = %d, want 3", s.ViewsThisWeek)
	}
	if s.AverageViewsPerPost != 1 {
		t.Errorf("AverageViewsPerPost = %v", s.AverageViewsPerPost)
	}
}

func TestAnalyticsSummaryEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore(), &fakeRemote{err: errBackendDown})

	e.TrackView(ctx, "postA", models.SourceFeed, "u1")
	e.TrackView(ctx, "postA", models.SourceModal, "u1")
	e.TrackView(ctx, "postB", models.SourceFeed, "u2")

	s := e.GetAnalyticsSummary(ctx)
	if s.TotalPosts != 2 || s.TotalViews != 3 {
		t.Fatalf("posts/views = %d/%d, want 2/3", s.TotalPosts, s.TotalViews)
	}
	if s.AverageViewsPerPost != 1.5 {
		t.Errorf("AverageViewsPerPost = %v, want 1.5", s.AverageViewsPerPost)
	}
	want := []models.SourceCount{{Source: models.SourceFeed, Count: 2}, {Source: models.SourceModal, Count: 1}}
	if len(s.TopSources) != len(want) {
		t.Fatalf("TopSources = %v", s.TopSources)
	}
	for i := range want {
		if s.TopSources[i] != want[i] {
			t.Errorf("TopSources[%d] = %v, want %v", i, s.TopSources[i], want[i])
		}
	}
	if s.Sync != models.LocalOnly {
		t.Errorf("Sync = %v", s.Sync)
	}
}

func TestAnalyticsSummaryEmpty(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, store.NewMemoryStore(), nil)

	s := e.GetAnalyticsSummary(context.Background())
	if s.TotalPosts != 0 || s.AverageViewsPerPost != 0 || len(s.TopSources) != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestAnalyticsSummaryMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	rc := &fakeRemote{analytics: &models.RemoteAnalytics{
		TotalViews:    i64(500),
		ViewsBySource: map[string]int64{"search": 300, "feed": 150, "modal": 50, "profile": 50},
		ViewsToday:    i64(0),
	}}
	e, _ := newTestEngine(t, store.NewMemoryStore(), rc)
	e.TrackView(ctx, "p", models.SourceFeed, "")

	s := e.GetAnalyticsSummary(ctx)
	if s.TotalViews != 500 || s.TotalPosts != 1 || s.ViewsToday != 1 {
		t.Errorf("views/posts/today = %d/%d/%d, want 500/1/1", s.TotalViews, s.TotalPosts, s.ViewsToday)
	}
	if len(s.TopSources) != 4 || s.TopSources[0].Source != models.SourceSearch {
		t.Fatalf("TopSources = %v", s.TopSources)
	}
	// Equal counts order by name.
	if s.TopSources[2].Source != models.SourceModal || s.TopSources[3].Source != models.SourceProfile {
		t.Errorf("tie order = %v", s.TopSources[2:])
	}

	rc.mu.Lock()
	rc.analytics = &models.RemoteAnalytics{TopSources: []models.SourceCount{{Source: models.SourceModal, Count: 9}}}
	rc.mu.Unlock()
	if s := e.GetAnalyticsSummary(ctx); len(s.TopSources) != 1 || s.TopSources[0].Count != 9 {
		t.Errorf("explicit remote TopSources not used: %v", s.TopSources)
	}
}

func TestTopSourcesLimit(t *testing.T) {
	t.Parallel()

	counts := map[models.Source]int64{"a": 1, "b": 5, "c": 3, "d": 3, "e": 2, "f": 9}
	got := topSources(counts, 3)
	if len(got) != 3 || got[0].Source != "f" || got[1].Source != "b" || got[2].Source != "c" {
		t.Errorf("topSources() = %v", got)
	}
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)
	today, week := dayBounds(now)
	if !today.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("today = %v", today)
	}
	if !week.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week = %v", week)
	}
}

func TestTopLocationsFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		remote *fakeRemote
		limit  int
		want   int
	}{
		{"backend down", &fakeRemote{err: errBackendDown}, 0, 5},
		{"empty answer", &fakeRemote{}, 0, 5},
		{"truncated", &fakeRemote{err: errBackendDown}, 3, 3},
		{"limit above placeholder size", &fakeRemote{err: errBackendDown}, 50, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _ := newTestEngine(t, store.NewMemoryStore(), tt.remote)

			lb := e.GetTopLocationsByViews(ctx, tt.limit)
			if !lb.Fallback || lb.Sync != models.LocalOnly {
				t.Errorf("Fallback/Sync = %v/%v", lb.Fallback, lb.Sync)
			}
			if len(lb.Locations) != tt.want {
				t.Fatalf("len = %d, want %d", len(lb.Locations), tt.want)
			}
			for _, l := range lb.Locations {
				if !l.Placeholder {
					t.Errorf("%s not marked placeholder", l.LocationName)
				}
			}
			if lb.Locations[0].LocationName != "Hà Nội" {
				t.Errorf("first = %q", lb.Locations[0].LocationName)
			}
		})
	}

	e, _ := newTestEngine(t, store.NewMemoryStore(), nil)
	if lb := e.GetTopLocationsByViews(ctx, 2); len(lb.Locations) != 2 || !lb.Fallback {
		t.Errorf("local-only engine leaderboard = %+v", lb)
	}
}

func TestTopLocationsRemote(t *testing.T) {
	t.Parallel()
	rc := &fakeRemote{locations: []models.RemoteLocation{
		{LocationID: 9, LocationName: "Huế", ViewCount: 10, UniqueViewers: 4},
		{LocationID: 8, LocationName: "Vinh", ViewCount: 8, UniqueViewers: 3},
		{LocationID: 7, LocationName: "Nha Trang", ViewCount: 2, UniqueViewers: 1},
	}}
	e, _ := newTestEngine(t, store.NewMemoryStore(), rc)

	lb := e.GetTopLocationsByViews(context.Background(), 2)
	if lb.Fallback || lb.Sync != models.Applied {
		t.Errorf("Fallback/Sync = %v/%v", lb.Fallback, lb.Sync)
	}
	if len(lb.Locations) != 2 || lb.Locations[0].LocationName != "Huế" || lb.Locations[0].Placeholder {
		t.Errorf("Locations = %+v", lb.Locations)
	}
}

func TestFallbackLocationsIsACopy(t *testing.T) {
	t.Parallel()

	a := FallbackLocations(5)
	a[0].ViewCount = 0
	if FallbackLocations(5)[0].ViewCount != 150 {
		t.Error("FallbackLocations() exposes shared state")
	}
}
