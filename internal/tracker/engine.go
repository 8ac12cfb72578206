// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package tracker is the view-tracking engine.
//
// An Engine owns the in-memory view log, the distinct-post index and the
// open sessions. Every mutation is written through to a store.Store; the
// backend is told about it in the background through a remote.Client. Local
// effects never wait for, and are never rolled back by, the backend.
//
// Construct one Engine at startup and pass it to consumers:
//
//	eng, err := tracker.New(ctx, cfg.Tracker, st, remote.New(cfg.Remote, creds),
//	    tracker.WithPublisher(bus))
//	eng.TrackView(ctx, "42", models.SourceFeed, "")
//
// No method returns store or network errors. They are logged and reported
// through models.SyncResult values instead.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/postviews/internal/config"
	"github.com/tomtom215/postviews/internal/events"
	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/remote"
	"github.com/tomtom215/postviews/internal/store"
)

// NoSession is returned by EndViewSession when no session was open.
const NoSession int64 = -1

// Defaults used when the corresponding TrackerConfig field is zero.
const (
	DefaultMaxViews      = 1000
	DefaultDedupWindow   = 5 * time.Minute
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultRecentLimit   = 20
	DefaultStatsRecent   = 10
	DefaultTopSources    = 5
	DefaultSessionMatch  = time.Second
	DefaultRemoteTimeout = 10 * time.Second
	DefaultLocationLimit = 5
)

// Identity supplies a user ID for views recorded without one.
type Identity interface {
	UserID(ctx context.Context) string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPublisher sets where new-view events go.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithIdentity sets the fallback identity source.
func WithIdentity(id Identity) Option {
	return func(e *Engine) { e.identity = id }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRemoteTimeout bounds each remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.remoteTimeout = d
		}
	}
}

type sessionKey struct {
	postID string
	source models.Source
}

type session struct {
	postID    string
	source    models.Source
	sessionID string
	start     time.Time
}

// Engine records views and answers aggregate queries.
type Engine struct {
	cfg           config.TrackerConfig
	store         store.Store
	remote        remote.Client
	pub           events.Publisher
	identity      Identity
	now           func() time.Time
	log           zerolog.Logger
	remoteTimeout time.Duration

	// mu guards views, index and both session maps.
	mu       sync.Mutex
	views    []models.Observation
	index    map[string]int
	modal    map[string]*session
	sessions map[sessionKey]*session

	// saveMu orders writes so a later snapshot is never overwritten by an
	// earlier one.
	saveMu sync.Mutex

	inflight sync.WaitGroup
}

// New builds an engine and loads the saved log. A missing or unreadable
// log yields an empty engine; only a nil store is an error. rc may be nil
// to run local-only.
func New(ctx context.Context, cfg config.TrackerConfig, st store.Store, rc remote.Client, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("tracker: store is required")
	}

	e := &Engine{
		cfg:           withDefaults(cfg),
		store:         st,
		remote:        rc,
		now:           time.Now,
		log:           logging.WithComponent("tracker"),
		remoteTimeout: DefaultRemoteTimeout,
		index:         make(map[string]int),
		modal:         make(map[string]*session),
		sessions:      make(map[sessionKey]*session),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.load(ctx)
	return e, nil
}

func withDefaults(cfg config.TrackerConfig) config.TrackerConfig {
	if cfg.MaxViews <= 0 {
		cfg.MaxViews = DefaultMaxViews
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if cfg.StatsRecent <= 0 {
		cfg.StatsRecent = DefaultStatsRecent
	}
	if cfg.TopSources <= 0 {
		cfg.TopSources = DefaultTopSources
	}
	if cfg.SessionMatch <= 0 {
		cfg.SessionMatch = DefaultSessionMatch
	}
	return cfg
}

func (e *Engine) load(ctx context.Context) {
	views, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.log.Debug().Msg("no saved view log, starting empty")
	case err != nil:
		e.log.Warn().Err(err).Msg("could not load view log, starting empty")
		views = nil
	}

	if n := len(views) - e.cfg.MaxViews; n > 0 {
		views = views[n:]
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.views = make([]models.Observation, 0, len(views))
	e.views = append(e.views, views...)
	e.rebuildIndexLocked()
	metrics.ViewLogSize.Set(float64(len(e.views)))

	e.log.Info().Int("views", len(e.views)).Int("posts", len(e.index)).Msg("view log loaded")
}

func (e *Engine) rebuildIndexLocked() {
	e.index = make(map[string]int, len(e.views))
	for _, v := range e.views {
		e.index[v.PostID]++
	}
}

// evictLocked drops the oldest observations beyond MaxViews.
func (e *Engine) evictLocked() {
	n := len(e.views) - e.cfg.MaxViews
	if n <= 0 {
		return
	}
	for _, v := range e.views[:n] {
		if e.index[v.PostID]--; e.index[v.PostID] <= 0 {
			delete(e.index, v.PostID)
		}
	}
	e.views = append(make([]models.Observation, 0, e.cfg.MaxViews), e.views[n:]...)
	metrics.ViewsEvicted.Add(float64(n))
}

func (e *Engine) updateGaugesLocked() {
	metrics.ViewLogSize.Set(float64(len(e.views)))
	metrics.ActiveSessions.Set(float64(len(e.modal) + len(e.sessions)))
}

// persist writes the current log. It returns LocalOnly on success and
// Failed when the store rejects the write. Caller cancellation does not
// stop the write.
func (e *Engine) persist(ctx context.Context) models.SyncResult {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snap := e.Snapshot()
	if err := e.store.Save(context.WithoutCancel(ctx), snap); err != nil {
		e.log.Error().Err(err).Int("views", len(snap)).Msg("failed to persist view log")
		return models.Failed
	}
	return models.LocalOnly
}

// dispatch runs call in the background and resolves p with the combined
// outcome: Applied when both sides succeeded, the local result otherwise.
func (e *Engine) dispatch(ctx context.Context, p *Pending, op string, call func(ctx context.Context, rc remote.Client) error) {
	if e.remote == nil {
		p.resolve(p.local)
		return
	}

	bg := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	metrics.RemoteInFlight.Inc()
	go func() {
		defer e.inflight.Done()
		defer metrics.RemoteInFlight.Dec()

		cctx, cancel := context.WithTimeout(bg, e.remoteTimeout)
		defer cancel()

		if err := call(cctx, e.remote); err != nil {
			e.log.Warn().Err(err).Str("operation", op).Msg("remote sync failed, keeping local result")
			p.resolve(p.local)
			return
		}
		if p.local == models.Failed {
			p.resolve(models.Failed)
			return
		}
		p.resolve(models.Applied)
	}()
}

// Drain waits for background remote calls to finish or ctx to end.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the log in order, oldest first.
func (e *Engine) Snapshot() []models.Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneViews(e.views)
}

func cloneViews(views []models.Observation) []models.Observation {
	out := make([]models.Observation, len(views))
	for i, v := range views {
		out[i] = v.Clone()
	}
	return out
}
