// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/store"
)

func TestClearOldViews(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t, map[string]time.Duration{
		"ancient": 31 * 24 * time.Hour,
		"edge":    30 * 24 * time.Hour,
		"recent":  29 * 24 * time.Hour,
	})
	rc := &fakeRemote{}
	e, _ := newTestEngine(t, st, rc)

	if r := waitResult(t, e.ClearOldViews(ctx)); r != models.Applied {
		t.Errorf("result = %v, want applied", r)
	}
	if e.HasViewed("ancient") || e.HasViewed("edge") {
		t.Error("views at or beyond the retention cutoff survived")
	}
	if !e.HasViewed("recent") {
		t.Error("recent view was dropped")
	}
	if len(rc.purged) != 1 || rc.purged[0] != 30 {
		t.Errorf("PurgeOld daysOld = %v, want [30]", rc.purged)
	}

	reloaded, _ := newTestEngine(t, st, nil)
	if len(reloaded.Snapshot()) != 1 {
		t.Error("purge was not persisted")
	}
}

func TestClearOldViewsSubDayRetention(t *testing.T) {
	t.Parallel()
	rc := &fakeRemote{}
	cfg := testConfig()
	cfg.Retention = 12 * time.Hour
	clock := newFakeClock()
	e, err := New(context.Background(), cfg, store.NewMemoryStore(), rc,
		WithClock(clock.Now), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	waitResult(t, e.TrackView(context.Background(), "p1", models.SourceFeed, "u1"))
	if r := waitResult(t, e.ClearOldViews(context.Background())); r != models.Applied {
		t.Errorf("result = %v, want applied", r)
	}
	if !e.HasViewed("p1") {
		t.Error("view newer than the retention period was dropped")
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.purged) != 1 || rc.purged[0] != 1 {
		t.Errorf("PurgeOld daysOld = %v, want [1]", rc.purged)
	}
}

func TestRetentionDays(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want int
	}{
		{time.Minute, 1},
		{12 * time.Hour, 1},
		{24 * time.Hour, 1},
		{36 * time.Hour, 2},
		{30 * 24 * time.Hour, 30},
	}
	for _, tt := range tests {
		if got := retentionDays(tt.in); got != tt.want {
			t.Errorf("retentionDays(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClearOldViewsRemoteDown(t *testing.T) {
	t.Parallel()
	st := seedStore(t, map[string]time.Duration{"ancient": 40 * 24 * time.Hour})
	e, _ := newTestEngine(t, st, &fakeRemote{err: errBackendDown})

	if r := waitResult(t, e.ClearOldViews(context.Background())); r != models.LocalOnly {
		t.Errorf("result = %v, want local_only", r)
	}
	if len(e.Snapshot()) != 0 {
		t.Error("local purge should not depend on the backend")
	}
}

func TestClearAllViewsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemoryStore()
	rc := &fakeRemote{}
	e, _ := newTestEngine(t, st, rc)

	e.TrackView(ctx, "a", models.SourceFeed, "")
	e.TrackModalView(ctx, "b", models.SourceModal, "")
	e.StartViewSession("a", models.SourceFeed)

	for i := 0; i < 2; i++ {
		if r := waitResult(t, e.ClearAllViews(ctx)); r != models.Applied {
			t.Errorf("ClearAllViews #%d = %v, want applied", i+1, r)
		}
		if len(e.Snapshot()) != 0 || len(e.GetViewedPosts()) != 0 || e.OpenSessions() != 0 {
			t.Errorf("state not empty after ClearAllViews #%d", i+1)
		}
	}
	if _, err := st.Load(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("store Load() error = %v, want ErrNotFound", err)
	}
	if rc.purges != 2 {
		t.Errorf("PurgeAll calls = %d, want 2", rc.purges)
	}
	if _, ok := e.EndViewSession(ctx, "a", models.SourceFeed); ok {
		t.Error("session survived ClearAllViews")
	}
}

func TestClearAllViewsStoreFailure(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, &failingStore{}, nil)

	e.TrackView(context.Background(), "a", models.SourceFeed, "")
	if r := waitResult(t, e.ClearAllViews(context.Background())); r != models.Failed {
		t.Errorf("result = %v, want failed", r)
	}
	if len(e.Snapshot()) != 0 {
		t.Error("memory should be cleared even when the store fails")
	}
}

func TestExportViewData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), nil)

	e.TrackView(ctx, "a", models.SourceFeed, "u1")
	e.TrackView(ctx, "b", models.SourceSearch, "u2")

	exp := e.ExportViewData(ctx)
	if len(exp.Views) != 2 || exp.Summary.TotalViews != 2 {
		t.Errorf("export = %d views, summary total %d", len(exp.Views), exp.Summary.TotalViews)
	}
	if !exp.ExportedAt.Equal(clock.Now()) {
		t.Errorf("ExportedAt = %v", exp.ExportedAt)
	}

	exp.Views[0].PostID = "mutated"
	if e.Snapshot()[0].PostID != "a" {
		t.Error("export shares memory with the log")
	}
}

func TestPendingWaitCancelled(t *testing.T) {
	t.Parallel()

	p := newPending(models.Observation{PostID: "p"}, models.LocalOnly)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if r := p.Wait(ctx); r != models.LocalOnly {
		t.Errorf("Wait() on cancelled ctx = %v, want local result", r)
	}

	p.resolve(models.Applied)
	if r := p.Wait(context.Background()); r != models.Applied {
		t.Errorf("Wait() = %v, want applied", r)
	}
}
