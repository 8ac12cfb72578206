// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/postviews/internal/config"
	"github.com/tomtom215/postviews/internal/events"
	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/remote"
	"github.com/tomtom215/postviews/internal/store"
)

var errBackendDown = errors.New("connection refused")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 14, 15, 30, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeRemote records calls and answers from its fields.
type fakeRemote struct {
	mu sync.Mutex

	err       error
	stats     *models.RemotePostStats
	analytics *models.RemoteAnalytics
	locations []models.RemoteLocation
	echoID    string

	creates []models.RemoteViewRequest
	updates []models.RemoteViewRequest
	purged  []int
	purges  int
}

var _ remote.Client = (*fakeRemote)(nil)

func (f *fakeRemote) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeRemote) CreateView(_ context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	err, echo := f.err, f.echoID
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if echo == "" {
		echo = req.SessionID
	}
	return &models.RemoteView{ViewSource: string(req.ViewSource), SessionID: echo}, nil
}

func (f *fakeRemote) UpdateView(_ context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error) {
	f.mu.Lock()
	f.updates = append(f.updates, req)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &models.RemoteView{SessionID: req.SessionID, DurationMs: req.DurationMs}, nil
}

func (f *fakeRemote) PostStats(context.Context, string) (*models.RemotePostStats, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stats == nil {
		return &models.RemotePostStats{}, nil
	}
	return f.stats, nil
}

func (f *fakeRemote) Analytics(context.Context) (*models.RemoteAnalytics, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analytics == nil {
		return &models.RemoteAnalytics{}, nil
	}
	return f.analytics, nil
}

func (f *fakeRemote) TopLocations(context.Context, int) ([]models.RemoteLocation, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locations, nil
}

func (f *fakeRemote) PurgeOld(_ context.Context, daysOld int) error {
	f.mu.Lock()
	f.purged = append(f.purged, daysOld)
	f.mu.Unlock()
	return f.fail()
}

func (f *fakeRemote) PurgeAll(context.Context) error {
	f.mu.Lock()
	f.purges++
	f.mu.Unlock()
	return f.fail()
}

func (f *fakeRemote) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

// failingStore rejects writes.
type failingStore struct {
	store.MemoryStore
}

func (s *failingStore) Save(context.Context, []models.Observation) error {
	return errors.New("disk full")
}

func (s *failingStore) Clear(context.Context) error {
	return errors.New("disk full")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ViewEvent
}

func (p *recordingPublisher) PublishView(_ context.Context, ev events.ViewEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func testConfig() config.TrackerConfig {
	return config.TrackerConfig{
		MaxViews:     1000,
		DedupWindow:  5 * time.Minute,
		Retention:    30 * 24 * time.Hour,
		RecentLimit:  20,
		StatsRecent:  10,
		TopSources:   5,
		SessionMatch: time.Second,
	}
}

// newTestEngine builds an engine over st with a fake clock. rc may be nil.
func newTestEngine(t *testing.T, st store.Store, rc remote.Client, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now), WithLogger(zerolog.Nop())}, opts...)
	e, err := New(context.Background(), testConfig(), st, rc, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e, clock
}

func waitResult(t *testing.T, p *Pending) models.SyncResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-p.Done():
	case <-ctx.Done():
		t.Fatal("pending operation did not finish")
	}
	return p.Wait(ctx)
}
