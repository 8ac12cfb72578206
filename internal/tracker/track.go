// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/postviews/internal/events"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/remote"
	"github.com/tomtom215/postviews/internal/validation"
)

// CloseFunc ends a modal session. Calls after the first resolve Skipped.
type CloseFunc func(ctx context.Context) *Pending

// TrackView records that postID was seen via source. A second call for the
// same post and source inside the dedup window is a no-op that resolves
// Skipped. Invalid input is logged and also resolves Skipped.
func (e *Engine) TrackView(ctx context.Context, postID string, source models.Source, userID string) *Pending {
	p, _, _ := e.track(ctx, postID, source, userID)
	return p
}

// track returns the pending handle, the observation it bound to and
// whether the input was usable.
func (e *Engine) track(ctx context.Context, postID string, source models.Source, userID string) (*Pending, models.Observation, bool) {
	if verr := validation.ValidateView(postID, source, userID); verr != nil {
		e.log.Warn().Str("post_id", postID).Str("source", string(source)).Err(verr).Msg("ignoring invalid view")
		return resolvedPending(models.Observation{}, models.Skipped), models.Observation{}, false
	}
	if userID == "" && e.identity != nil {
		userID = e.identity.UserID(ctx)
	}

	e.mu.Lock()
	now := e.now()
	if prev, ok := e.recentLocked(postID, source, now); ok {
		e.mu.Unlock()
		metrics.ViewsDeduplicated.WithLabelValues(string(source)).Inc()
		e.log.Debug().Str("post_id", postID).Str("source", string(source)).Msg("duplicate view inside dedup window")
		return resolvedPending(prev, models.Skipped), prev, true
	}

	obs := models.Observation{
		PostID:    postID,
		UserID:    userID,
		ViewedAt:  now,
		Source:    source,
		SessionID: uuid.New().String(),
	}
	e.views = append(e.views, obs)
	e.index[postID]++
	e.evictLocked()
	e.updateGaugesLocked()
	e.mu.Unlock()

	metrics.ViewsRecorded.WithLabelValues(string(source)).Inc()
	local := e.persist(ctx)
	e.publish(ctx, obs)

	p := newPending(obs, local)
	e.dispatch(ctx, p, "create_view", func(ctx context.Context, rc remote.Client) error {
		view, err := rc.CreateView(ctx, postID, models.RemoteViewRequest{ViewSource: source, SessionID: obs.SessionID})
		if err != nil {
			return err
		}
		if view != nil && view.SessionID != "" && view.SessionID != obs.SessionID {
			e.log.Debug().Str("post_id", postID).Str("local", obs.SessionID).Str("remote", view.SessionID).
				Msg("backend echoed a different session id, keeping local")
		}
		return nil
	})

	e.log.Debug().Str("post_id", postID).Str("source", string(source)).Msg("view tracked")
	return p, obs, true
}

// recentLocked finds an observation of the pair inside the dedup window.
func (e *Engine) recentLocked(postID string, source models.Source, now time.Time) (models.Observation, bool) {
	for i := len(e.views) - 1; i >= 0; i-- {
		v := e.views[i]
		if v.PostID != postID || v.Source != source {
			continue
		}
		if now.Sub(v.ViewedAt) < e.cfg.DedupWindow {
			return v.Clone(), true
		}
	}
	return models.Observation{}, false
}

func (e *Engine) publish(ctx context.Context, obs models.Observation) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishView(ctx, events.NewViewEvent(obs)); err != nil {
		e.log.Warn().Err(err).Str("post_id", obs.PostID).Msg("failed to publish view event")
	}
}

// TrackModalView tracks the view and opens a duration session keyed by
// postID. The session shares the observation's sessionId; when the view was
// deduplicated it binds to the earlier observation. An empty source means
// modal.
func (e *Engine) TrackModalView(ctx context.Context, postID string, source models.Source, userID string) (CloseFunc, *Pending) {
	if source == "" {
		source = models.SourceModal
	}

	p, obs, ok := e.track(ctx, postID, source, userID)
	if !ok {
		return func(context.Context) *Pending {
			return resolvedPending(models.Observation{}, models.Skipped)
		}, p
	}

	s := &session{
		postID:    postID,
		source:    source,
		sessionID: obs.SessionID,
	}
	e.mu.Lock()
	s.start = e.now()
	e.modal[postID] = s
	e.updateGaugesLocked()
	e.mu.Unlock()

	return func(ctx context.Context) *Pending { return e.closeModal(ctx, s) }, p
}

func (e *Engine) closeModal(ctx context.Context, s *session) *Pending {
	e.mu.Lock()
	if e.modal[s.postID] != s {
		e.mu.Unlock()
		return resolvedPending(models.Observation{}, models.Skipped)
	}
	delete(e.modal, s.postID)

	durationMs := e.now().Sub(s.start).Milliseconds()
	var obs models.Observation
	found := false
	for i := len(e.views) - 1; i >= 0; i-- {
		if e.views[i].PostID == s.postID && e.views[i].SessionID == s.sessionID {
			d := durationMs
			e.views[i].DurationMs = &d
			obs = e.views[i].Clone()
			found = true
			break
		}
	}
	e.updateGaugesLocked()
	e.mu.Unlock()

	metrics.RecordSessionDuration(string(s.source), durationMs)

	local := models.LocalOnly
	if found {
		local = e.persist(ctx)
	} else {
		e.log.Debug().Str("post_id", s.postID).Msg("closed session has no observation left in the log")
		obs = models.Observation{PostID: s.postID, Source: s.source, SessionID: s.sessionID}
	}

	p := newPending(obs, local)
	e.dispatch(ctx, p, "update_view", func(ctx context.Context, rc remote.Client) error {
		d := durationMs
		_, err := rc.UpdateView(ctx, s.postID, models.RemoteViewRequest{
			ViewSource: s.source,
			DurationMs: &d,
			SessionID:  s.sessionID,
		})
		return err
	})
	return p
}

// StartViewSession opens a session keyed by post and source. It returns
// false when one is already open or the input is invalid.
func (e *Engine) StartViewSession(postID string, source models.Source) bool {
	if postID == "" || !source.Valid() {
		return false
	}
	key := sessionKey{postID: postID, source: source}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, open := e.sessions[key]; open {
		return false
	}
	e.sessions[key] = &session{postID: postID, source: source, start: e.now()}
	e.updateGaugesLocked()
	return true
}

// EndViewSession closes the session for post and source and returns its
// duration in milliseconds, or (NoSession, false) when none is open. The
// duration is written to the observation of the same pair recorded within
// SessionMatch of the session start.
func (e *Engine) EndViewSession(ctx context.Context, postID string, source models.Source) (int64, bool) {
	key := sessionKey{postID: postID, source: source}

	e.mu.Lock()
	s, open := e.sessions[key]
	if !open {
		e.mu.Unlock()
		return NoSession, false
	}
	delete(e.sessions, key)

	durationMs := e.now().Sub(s.start).Milliseconds()
	updated := false
	for i := range e.views {
		v := &e.views[i]
		if v.PostID != postID || v.Source != source {
			continue
		}
		if absDuration(v.ViewedAt.Sub(s.start)) < e.cfg.SessionMatch {
			d := durationMs
			v.DurationMs = &d
			updated = true
			break
		}
	}
	e.updateGaugesLocked()
	e.mu.Unlock()

	metrics.RecordSessionDuration(string(source), durationMs)
	if updated {
		e.persist(ctx)
	}
	e.log.Debug().Str("post_id", postID).Str("source", string(source)).Int64("duration_ms", durationMs).Msg("view session ended")
	return durationMs, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// modalCompletionThreshold is the dwell time above which a legacy modal
// view is logged as completed.
const modalCompletionThreshold = 1000

// TrackModalViewLegacy tracks a modal view through the post+source session
// API. The returned func ends the session and then runs onClose, which may
// be nil.
func (e *Engine) TrackModalViewLegacy(ctx context.Context, postID string, onClose func()) func() {
	e.TrackView(ctx, postID, models.SourceModal, "")
	e.StartViewSession(postID, models.SourceModal)

	bg := context.WithoutCancel(ctx)
	return func() {
		if d, ok := e.EndViewSession(bg, postID, models.SourceModal); ok && d > modalCompletionThreshold {
			e.log.Info().Str("post_id", postID).Int64("duration_ms", d).Msg("modal view completed")
		}
		if onClose != nil {
			onClose()
		}
	}
}
