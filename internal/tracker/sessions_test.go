// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/store"
)

func TestModalViewDuration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rc := &fakeRemote{}
	e, clock := newTestEngine(t, store.NewMemoryStore(), rc)

	closeFn, p := e.TrackModalView(ctx, "p1", models.SourceModal, "")
	waitResult(t, p)
	sessionID := p.Observation().SessionID

	clock.Advance(150 * time.Millisecond)
	if r := waitResult(t, closeFn(ctx)); r != models.Applied {
		t.Errorf("close result = %v, want applied", r)
	}

	obs := e.Snapshot()[0]
	if obs.DurationMs == nil || *obs.DurationMs != 150 {
		t.Fatalf("DurationMs = %v, want 150", obs.DurationMs)
	}
	if len(rc.updates) != 1 {
		t.Fatalf("remote updates = %d, want 1", len(rc.updates))
	}
	if u := rc.updates[0]; u.SessionID != sessionID || u.DurationMs == nil || *u.DurationMs != 150 || u.ViewSource != models.SourceModal {
		t.Errorf("update request = %+v, want session %s", u, sessionID)
	}

	clock.Advance(time.Second)
	if r := waitResult(t, closeFn(ctx)); r != models.Skipped {
		t.Errorf("second close = %v, want skipped", r)
	}
	if d := *e.Snapshot()[0].DurationMs; d != 150 {
		t.Errorf("second close changed duration to %d", d)
	}
	if len(rc.updates) != 1 {
		t.Errorf("second close called the backend")
	}
	if e.OpenSessions() != 0 {
		t.Errorf("OpenSessions() = %d, want 0", e.OpenSessions())
	}
}

func TestModalViewDurationRealClock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, err := New(ctx, testConfig(), store.NewMemoryStore(), nil, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatal(err)
	}

	closeFn, _ := e.TrackModalView(ctx, "p1", "", "")
	time.Sleep(150 * time.Millisecond)
	closeFn(ctx)

	obs := e.Snapshot()[0]
	if obs.Source != models.SourceModal {
		t.Errorf("Source = %q, want modal default", obs.Source)
	}
	if obs.DurationMs == nil || *obs.DurationMs < 150 || *obs.DurationMs > 1000 {
		t.Errorf("DurationMs = %v, want about 150", obs.DurationMs)
	}
}

func TestModalViewDedupBindsExistingObservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), nil)

	first := e.TrackView(ctx, "p", models.SourceModal, "")
	clock.Advance(time.Minute)

	closeFn, p := e.TrackModalView(ctx, "p", models.SourceModal, "")
	if r := waitResult(t, p); r != models.Skipped {
		t.Fatalf("modal track = %v, want skipped", r)
	}
	if p.Observation().SessionID != first.Observation().SessionID {
		t.Error("session should bind to the earlier observation")
	}

	clock.Advance(2 * time.Second)
	closeFn(ctx)

	views := e.Snapshot()
	if len(views) != 1 || views[0].DurationMs == nil || *views[0].DurationMs != 2000 {
		t.Errorf("views = %+v", views)
	}
}

func TestModalViewCloseAfterClearAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore(), nil)

	closeFn, _ := e.TrackModalView(ctx, "p", models.SourceModal, "")
	waitResult(t, e.ClearAllViews(ctx))

	if r := waitResult(t, closeFn(ctx)); r != models.Skipped {
		t.Errorf("close after ClearAllViews = %v, want skipped", r)
	}
}

func TestModalViewCloseWithRemoteDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), &fakeRemote{err: errBackendDown})

	closeFn, _ := e.TrackModalView(ctx, "p", models.SourceModal, "")
	clock.Advance(300 * time.Millisecond)
	if r := waitResult(t, closeFn(ctx)); r != models.LocalOnly {
		t.Errorf("close result = %v, want local_only", r)
	}
	if d := e.Snapshot()[0].DurationMs; d == nil || *d != 300 {
		t.Errorf("DurationMs = %v, want 300", d)
	}
}

func TestViewSessionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), nil)

	if d, ok := e.EndViewSession(ctx, "p", models.SourceFeed); ok || d != NoSession {
		t.Errorf("EndViewSession() without session = (%d, %v), want (%d, false)", d, ok, NoSession)
	}

	e.TrackView(ctx, "p", models.SourceFeed, "")
	if !e.StartViewSession("p", models.SourceFeed) {
		t.Fatal("StartViewSession() = false")
	}
	clock.Advance(200 * time.Millisecond)
	if e.StartViewSession("p", models.SourceFeed) {
		t.Error("second StartViewSession() should be a no-op")
	}
	// Same post from another context runs independently.
	if !e.StartViewSession("p", models.SourceSearch) {
		t.Error("StartViewSession() for another source = false")
	}

	clock.Advance(300 * time.Millisecond)
	d, ok := e.EndViewSession(ctx, "p", models.SourceFeed)
	if !ok || d != 500 {
		t.Fatalf("EndViewSession() = (%d, %v), want (500, true)", d, ok)
	}
	if got := e.Snapshot()[0].DurationMs; got == nil || *got != 500 {
		t.Errorf("observation DurationMs = %v, want 500", got)
	}
	if _, ok := e.EndViewSession(ctx, "p", models.SourceFeed); ok {
		t.Error("ending twice should report no session")
	}
	if e.OpenSessions() != 1 {
		t.Errorf("OpenSessions() = %d, want 1", e.OpenSessions())
	}
}

func TestViewSessionOnlyMatchesNearbyObservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), nil)

	e.TrackView(ctx, "p", models.SourceFeed, "")
	clock.Advance(2 * time.Second)
	e.StartViewSession("p", models.SourceFeed)
	clock.Advance(time.Second)

	if d, ok := e.EndViewSession(ctx, "p", models.SourceFeed); !ok || d != 1000 {
		t.Fatalf("EndViewSession() = (%d, %v)", d, ok)
	}
	if e.Snapshot()[0].HasDuration() {
		t.Error("observation recorded 2s before the session start must not be updated")
	}
}

func TestTrackModalViewLegacy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, clock := newTestEngine(t, store.NewMemoryStore(), nil)

	closed := 0
	done := e.TrackModalViewLegacy(ctx, "p", func() { closed++ })
	clock.Advance(1500 * time.Millisecond)
	done()

	if closed != 1 {
		t.Errorf("onClose ran %d times, want 1", closed)
	}
	views := e.Snapshot()
	if len(views) != 1 || views[0].Source != models.SourceModal {
		t.Fatalf("views = %+v", views)
	}
	if views[0].DurationMs == nil || *views[0].DurationMs != 1500 {
		t.Errorf("DurationMs = %v, want 1500", views[0].DurationMs)
	}

	// A nil callback is allowed.
	e.TrackModalViewLegacy(ctx, "q", nil)()
}
