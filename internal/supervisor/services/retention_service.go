// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/tracker"
)

// ErrNoSchedule is returned for an empty retention schedule.
var ErrNoSchedule = errors.New("retention: schedule is empty")

// retentionWait bounds how long one run waits on the backend purge.
const retentionWait = 30 * time.Second

// Purger drops observations past the retention period.
type Purger interface {
	ClearOldViews(ctx context.Context) *tracker.Pending
}

var _ Purger = (*tracker.Engine)(nil)

// RetentionService runs ClearOldViews on a cron schedule. Overlapping runs
// are skipped.
type RetentionService struct {
	purger   Purger
	spec     string
	schedule cron.Schedule
	log      zerolog.Logger
}

// NewRetentionService parses spec with the standard cron parser, which
// also accepts descriptors such as "@daily" and "@every 1h".
func NewRetentionService(p Purger, spec string) (*RetentionService, error) {
	if spec == "" {
		return nil, ErrNoSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("retention: parse schedule %q: %w", spec, err)
	}
	return &RetentionService{
		purger:   p,
		spec:     spec,
		schedule: sched,
		log:      logging.WithComponent("retention"),
	}, nil
}

// Serve implements suture.Service.
func (s *RetentionService) Serve(ctx context.Context) error {
	cl := cronLogger{log: s.log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.run(ctx) }))

	c.Start()
	s.log.Info().Str("schedule", s.spec).Msg("retention scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *RetentionService) run(ctx context.Context) {
	start := time.Now()
	p := s.purger.ClearOldViews(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, retentionWait)
	defer cancel()
	result := p.Wait(waitCtx)

	metrics.RetentionRuns.Inc()
	ev := s.log.Info()
	if result == models.Failed {
		ev = s.log.Warn()
	}
	ev.Str("sync", result.String()).Dur("took", time.Since(start)).Msg("retention run finished")
}

// String implements fmt.Stringer for suture logs.
func (s *RetentionService) String() string {
	return "retention-scheduler"
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
