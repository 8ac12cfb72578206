// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"
	"time"

	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/remote"
)

// ClearOldViews drops observations older than the retention period, then
// asks the backend to do the same.
func (e *Engine) ClearOldViews(ctx context.Context) *Pending {
	e.mu.Lock()
	cutoff := e.now().Add(-e.cfg.Retention)
	kept := make([]models.Observation, 0, len(e.views))
	for _, v := range e.views {
		if v.ViewedAt.After(cutoff) {
			kept = append(kept, v)
		}
	}
	removed := len(e.views) - len(kept)
	e.views = kept
	e.rebuildIndexLocked()
	e.updateGaugesLocked()
	e.mu.Unlock()

	if removed > 0 {
		metrics.ViewsPurged.WithLabelValues("retention").Add(float64(removed))
	}
	e.log.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("old views cleared")

	p := newPending(models.Observation{}, e.persist(ctx))
	daysOld := retentionDays(e.cfg.Retention)
	e.dispatch(ctx, p, "purge_old", func(ctx context.Context, rc remote.Client) error {
		return rc.PurgeOld(ctx, daysOld)
	})
	return p
}

// ClearAllViews empties the log, the sessions and the store, then asks the
// backend to purge everything. Repeated calls are safe.
func (e *Engine) ClearAllViews(ctx context.Context) *Pending {
	e.saveMu.Lock()
	e.mu.Lock()
	removed := len(e.views)
	e.views = nil
	e.index = make(map[string]int)
	e.modal = make(map[string]*session)
	e.sessions = make(map[sessionKey]*session)
	e.updateGaugesLocked()
	e.mu.Unlock()

	local := models.LocalOnly
	if err := e.store.Clear(context.WithoutCancel(ctx)); err != nil {
		e.log.Error().Err(err).Msg("failed to clear stored view log")
		local = models.Failed
	}
	e.saveMu.Unlock()

	if removed > 0 {
		metrics.ViewsPurged.WithLabelValues("clear_all").Add(float64(removed))
	}
	e.log.Info().Int("removed", removed).Msg("all views cleared")

	p := newPending(models.Observation{}, local)
	e.dispatch(ctx, p, "purge_all", func(ctx context.Context, rc remote.Client) error {
		return rc.PurgeAll(ctx)
	})
	return p
}

// ExportViewData returns a copy of the log with the analytics summary.
func (e *Engine) ExportViewData(ctx context.Context) models.ViewExport {
	views := e.Snapshot()
	return models.ViewExport{
		Views:      views,
		Summary:    e.GetAnalyticsSummary(ctx),
		ExportedAt: e.now(),
	}
}

// retentionDays converts the retention period to the whole days the backend
// takes, rounding up. The backend never purges more than the local log did,
// and daysOld=0 (purge everything) is never sent.
func retentionDays(d time.Duration) int {
	const day = 24 * time.Hour
	days := int((d + day - 1) / day)
	if days < 1 {
		days = 1
	}
	return days
}
