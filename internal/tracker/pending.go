// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"

	"github.com/tomtom215/postviews/internal/models"
)

// Pending is the handle of a best-effort operation. The local effect has
// already happened when a Pending is returned; the remote side may still be
// running. Callers may ignore it.
type Pending struct {
	obs    models.Observation
	local  models.SyncResult
	result models.SyncResult
	done   chan struct{}
}

func newPending(obs models.Observation, local models.SyncResult) *Pending {
	return &Pending{obs: obs, local: local, done: make(chan struct{})}
}

func resolvedPending(obs models.Observation, r models.SyncResult) *Pending {
	p := newPending(obs, r)
	p.resolve(r)
	return p
}

// resolve must be called exactly once.
func (p *Pending) resolve(r models.SyncResult) {
	p.result = r
	close(p.done)
}

// Wait blocks until the remote side finishes or ctx ends. When ctx ends
// first it returns the local outcome (LocalOnly or Failed).
func (p *Pending) Wait(ctx context.Context) models.SyncResult {
	select {
	case <-p.done:
		return p.result
	case <-ctx.Done():
		return p.local
	}
}

// Done is closed once the result is final.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Observation returns the observation the operation acted on. For a
// deduplicated view it is the earlier observation that suppressed it; for
// purges it is the zero value.
func (p *Pending) Observation() models.Observation {
	return p.obs.Clone()
}
