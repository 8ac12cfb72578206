// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package visibility turns enter/exit signals from a viewport into
// confirmed views and duration sessions.
//
// A post counts as viewed once it stays visible for the dwell delay. The
// adapter then records the view and opens a post+source session, which it
// closes when the post leaves the viewport.
package visibility

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/postviews/internal/config"
	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/tracker"
)

// DefaultDwell is how long a post must stay visible to count as viewed.
const DefaultDwell = time.Second

// Signal receives viewport transitions for post IDs.
type Signal interface {
	OnEnterView(postID string)
	OnExitView(postID string)
}

// Tracker is the part of tracker.Engine the adapter drives.
type Tracker interface {
	TrackView(ctx context.Context, postID string, source models.Source, userID string) *tracker.Pending
	StartViewSession(postID string, source models.Source) bool
	EndViewSession(ctx context.Context, postID string, source models.Source) (int64, bool)
}

var _ Tracker = (*tracker.Engine)(nil)

// AfterFunc schedules f after d and returns a func that cancels it,
// reporting whether f was prevented from running.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type entry struct {
	stop      func() bool
	confirmed bool
}

// TimerAdapter implements Signal with a dwell timer per post.
type TimerAdapter struct {
	ctx       context.Context
	tracker   Tracker
	source    models.Source
	dwell     time.Duration
	afterFunc AfterFunc
	log       zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

var _ Signal = (*TimerAdapter)(nil)

// Option configures a TimerAdapter.
type Option func(*TimerAdapter)

// WithAfterFunc replaces the timer implementation.
func WithAfterFunc(f AfterFunc) Option {
	return func(a *TimerAdapter) { a.afterFunc = f }
}

// NewTimerAdapter returns an adapter that reports views of source to t.
// Calls made on t use ctx without its cancellation.
func NewTimerAdapter(ctx context.Context, t Tracker, cfg config.VisibilityConfig, opts ...Option) *TimerAdapter {
	source := models.Source(cfg.Source)
	if !source.Valid() {
		source = models.SourceFeed
	}
	dwell := cfg.DwellDelay
	if dwell <= 0 {
		dwell = DefaultDwell
	}

	a := &TimerAdapter{
		ctx:       context.WithoutCancel(ctx),
		tracker:   t,
		source:    source,
		dwell:     dwell,
		afterFunc: realAfterFunc,
		log:       logging.WithComponent("visibility"),
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnEnterView starts the dwell timer for postID. Repeated enters while the
// post is visible are ignored.
func (a *TimerAdapter) OnEnterView(postID string) {
	if postID == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if _, visible := a.entries[postID]; visible {
		return
	}
	e := &entry{}
	a.entries[postID] = e
	e.stop = a.afterFunc(a.dwell, func() { a.confirm(postID, e) })
}

func (a *TimerAdapter) confirm(postID string, e *entry) {
	a.mu.Lock()
	if a.closed || a.entries[postID] != e {
		a.mu.Unlock()
		return
	}
	e.confirmed = true
	a.mu.Unlock()

	a.tracker.TrackView(a.ctx, postID, a.source, "")
	a.tracker.StartViewSession(postID, a.source)

	// An exit that ran while the lock was released found no session to end.
	a.mu.Lock()
	exited := a.entries[postID] != e
	a.mu.Unlock()
	if exited {
		a.tracker.EndViewSession(a.ctx, postID, a.source)
		a.log.Debug().Str("post_id", postID).Msg("view exited during confirmation")
		return
	}
	a.log.Debug().Str("post_id", postID).Dur("dwell", a.dwell).Msg("view confirmed")
}

// OnExitView cancels a pending dwell timer, or ends the session of a
// confirmed view.
func (a *TimerAdapter) OnExitView(postID string) {
	a.mu.Lock()
	e, visible := a.entries[postID]
	if !visible {
		a.mu.Unlock()
		return
	}
	delete(a.entries, postID)
	confirmed := e.confirmed
	a.mu.Unlock()

	if !confirmed {
		e.stop()
		return
	}
	if d, ok := a.tracker.EndViewSession(a.ctx, postID, a.source); ok {
		a.log.Debug().Str("post_id", postID).Int64("duration_ms", d).Msg("view session closed")
	}
}

// Visible returns how many posts are inside the viewport.
func (a *TimerAdapter) Visible() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Close stops every pending timer. Open sessions are left to the engine.
func (a *TimerAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for id, e := range a.entries {
		if !e.confirmed {
			e.stop()
		}
		delete(a.entries, id)
	}
}
