// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/tracker"
	"github.com/tomtom215/postviews/internal/validation"
	"github.com/tomtom215/postviews/internal/visibility"
	"github.com/tomtom215/postviews/internal/websocket"
)

// purgeWait bounds how long purge handlers wait for the backend before
// answering with the local result.
const purgeWait = 5 * time.Second

// Engine is the tracker surface the handlers use.
type Engine interface {
	TrackView(ctx context.Context, postID string, source models.Source, userID string) *tracker.Pending
	TrackModalView(ctx context.Context, postID string, source models.Source, userID string) (tracker.CloseFunc, *tracker.Pending)
	StartViewSession(postID string, source models.Source) bool
	EndViewSession(ctx context.Context, postID string, source models.Source) (int64, bool)
	HasViewed(postID string) bool
	GetViewCount(postID string) int
	GetPostViewStats(ctx context.Context, postID string) models.ViewStats
	GetViewedPosts() []string
	GetRecentViews(limit int) []models.Observation
	GetAnalyticsSummary(ctx context.Context) models.AnalyticsSummary
	GetTopLocationsByViews(ctx context.Context, limit int) models.LocationLeaderboard
	ExportViewData(ctx context.Context) models.ViewExport
	ClearOldViews(ctx context.Context) *tracker.Pending
	ClearAllViews(ctx context.Context) *tracker.Pending
	OpenSessions() int
}

var _ Engine = (*tracker.Engine)(nil)

// Handler serves the views API.
type Handler struct {
	engine     Engine
	hub        *websocket.Hub
	visibility visibility.Signal
	upgrader   gorillaws.Upgrader
	started    time.Time

	// modalMu guards modals, the close funcs of open modal sessions by post.
	modalMu sync.Mutex
	modals  map[string]tracker.CloseFunc
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithVisibility enables the viewport enter/exit routes.
func WithVisibility(sig visibility.Signal) HandlerOption {
	return func(h *Handler) { h.visibility = sig }
}

// NewHandler creates a handler. hub may be nil, which disables /ws.
func NewHandler(engine Engine, hub *websocket.Hub, wsOrigins []string, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:   engine,
		hub:      hub,
		upgrader: websocket.NewUpgrader(wsOrigins),
		started:  time.Now(),
		modals:   make(map[string]tracker.CloseFunc),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TrackViewRequest is the body of POST /posts/{postId}.
type TrackViewRequest struct {
	Source string `json:"source"`
	UserID string `json:"userId,omitempty"`
}

// TrackViewResponse reports what TrackView did. Sync is empty while the
// backend call is still running.
type TrackViewResponse struct {
	PostID    string `json:"postId"`
	Source    string `json:"source"`
	SessionID string `json:"sessionId"`
	Duplicate bool   `json:"duplicate"`
	Sync      string `json:"sync,omitempty"`
}

// PostViewResponse is the body of GET /posts/{postId}.
type PostViewResponse struct {
	PostID string `json:"postId"`
	Viewed bool   `json:"viewed"`
	Count  int    `json:"count"`
}

// SessionRequest is the body of POST /posts/{postId}/sessions.
type SessionRequest struct {
	Source string `json:"source"`
}

// SessionEndResponse is the body of DELETE /posts/{postId}/sessions/{source}.
type SessionEndResponse struct {
	PostID     string `json:"postId"`
	Source     string `json:"source"`
	DurationMs int64  `json:"durationMs"`
}

// ModalResponse reports a modal open or close. DurationMs is set on close.
type ModalResponse struct {
	PostID     string `json:"postId"`
	Source     string `json:"source"`
	SessionID  string `json:"sessionId"`
	DurationMs *int64 `json:"durationMs,omitempty"`
	Sync       string `json:"sync,omitempty"`
}

// VisibilityResponse reports a viewport transition.
type VisibilityResponse struct {
	PostID  string `json:"postId"`
	Visible bool   `json:"visible"`
}

// PurgeResponse reports a purge outcome.
type PurgeResponse struct {
	Sync string `json:"sync"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	TrackedPosts  int    `json:"tracked_posts"`
	OpenSessions  int    `json:"open_sessions"`
	WSClients     int    `json:"websocket_clients"`
}

// TrackView handles POST /posts/{postId}.
func (h *Handler) TrackView(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	postID := chi.URLParam(r, "postId")

	var req TrackViewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if verr := validation.ValidateView(postID, models.Source(req.Source), req.UserID); verr != nil {
		respondValidationError(w, verr)
		return
	}

	p := h.engine.TrackView(r.Context(), postID, models.Source(req.Source), req.UserID)
	obs := p.Observation()
	resp := TrackViewResponse{
		PostID:    postID,
		Source:    req.Source,
		SessionID: obs.SessionID,
	}

	status := http.StatusAccepted
	select {
	case <-p.Done():
		result := p.Wait(r.Context())
		resp.Sync = result.String()
		if result == models.Skipped {
			resp.Duplicate = true
			status = http.StatusOK
		}
	default:
	}
	respondSuccess(w, status, resp, start)
}

// GetPostView handles GET /posts/{postId}.
func (h *Handler) GetPostView(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	postID := chi.URLParam(r, "postId")
	respondSuccess(w, http.StatusOK, PostViewResponse{
		PostID: postID,
		Viewed: h.engine.HasViewed(postID),
		Count:  h.engine.GetViewCount(postID),
	}, start)
}

// GetPostStats handles GET /posts/{postId}/stats.
func (h *Handler) GetPostStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, h.engine.GetPostViewStats(r.Context(), chi.URLParam(r, "postId")), start)
}

// StartSession handles POST /posts/{postId}/sessions.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	postID := chi.URLParam(r, "postId")

	var req SessionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if verr := validation.ValidateView(postID, models.Source(req.Source), ""); verr != nil {
		respondValidationError(w, verr)
		return
	}

	if !h.engine.StartViewSession(postID, models.Source(req.Source)) {
		respondError(w, http.StatusConflict, ErrCodeConflict, "a session is already open for this post and source", nil)
		return
	}
	respondSuccess(w, http.StatusCreated, SessionRequest{Source: req.Source}, start)
}

// EndSession handles DELETE /posts/{postId}/sessions/{source}.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	postID := chi.URLParam(r, "postId")
	source := chi.URLParam(r, "source")

	if verr := validation.ValidateView(postID, models.Source(source), ""); verr != nil {
		respondValidationError(w, verr)
		return
	}

	d, ok := h.engine.EndViewSession(r.Context(), postID, models.Source(source))
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "no open session for this post and source", nil)
		return
	}
	respondSuccess(w, http.StatusOK, SessionEndResponse{PostID: postID, Source: source, DurationMs: d}, start)
}

// OpenModal handles POST /posts/{postId}/modal. The body is optional; the
// source defaults to modal. Opening again replaces the earlier session.
func (h *Handler) OpenModal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	postID := chi.URLParam(r, "postId")

	var req TrackViewRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
			return
		}
	}
	source := models.Source(req.Source)
	if source == "" {
		source = models.SourceModal
	}
	if verr := validation.ValidateView(postID, source, req.UserID); verr != nil {
		respondValidationError(w, verr)
		return
	}

	closeFn, p := h.engine.TrackModalView(r.Context(), postID, source, req.UserID)
	h.modalMu.Lock()
	h.modals[postID] = closeFn
	h.modalMu.Unlock()

	respondSuccess(w, http.StatusCreated, ModalResponse{
		PostID:    postID,
		Source:    string(source),
		SessionID: p.Observation().SessionID,
	}, start)
}

// CloseModal handles DELETE /posts/{postId}/modal.
func (h *Handler) CloseModal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	postID := chi.URLParam(r, "postId")

	h.modalMu.Lock()
	closeFn, ok := h.modals[postID]
	delete(h.modals, postID)
	h.modalMu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "no open modal session for this post", nil)
		return
	}

	p := closeFn(r.Context())
	resp := ModalResponse{PostID: postID}
	select {
	case <-p.Done():
		result := p.Wait(r.Context())
		if result == models.Skipped {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "modal session already closed", nil)
			return
		}
		resp.Sync = result.String()
	default:
	}
	obs := p.Observation()
	resp.Source = string(obs.Source)
	resp.SessionID = obs.SessionID
	resp.DurationMs = obs.DurationMs
	respondSuccess(w, http.StatusOK, resp, start)
}

// EnterView handles PUT /posts/{postId}/visibility.
func (h *Handler) EnterView(w http.ResponseWriter, r *http.Request) {
	h.visibilityChange(w, r, true)
}

// ExitView handles DELETE /posts/{postId}/visibility.
func (h *Handler) ExitView(w http.ResponseWriter, r *http.Request) {
	h.visibilityChange(w, r, false)
}

func (h *Handler) visibilityChange(w http.ResponseWriter, r *http.Request, visible bool) {
	start := time.Now()
	if h.visibility == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "visibility tracking unavailable", nil)
		return
	}
	postID := chi.URLParam(r, "postId")
	if verr := validation.ValidateView(postID, models.SourceFeed, ""); verr != nil {
		respondValidationError(w, verr)
		return
	}
	if visible {
		h.visibility.OnEnterView(postID)
	} else {
		h.visibility.OnExitView(postID)
	}
	respondSuccess(w, http.StatusAccepted, VisibilityResponse{PostID: postID, Visible: visible}, start)
}

// ListPosts handles GET /posts.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, h.engine.GetViewedPosts(), start)
}

// RecentViews handles GET /recent?limit=N.
func (h *Handler) RecentViews(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, h.engine.GetRecentViews(getIntParam(r, "limit", 0)), start)
}

// Analytics handles GET /analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, h.engine.GetAnalyticsSummary(r.Context()), start)
}

// TopLocations handles GET /locations/top?limit=N.
func (h *Handler) TopLocations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit := getIntParam(r, "limit", tracker.DefaultLocationLimit)
	respondSuccess(w, http.StatusOK, h.engine.GetTopLocationsByViews(r.Context(), limit), start)
}

// Export handles GET /export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Disposition", `attachment; filename="post-views-export.json"`)
	respondSuccess(w, http.StatusOK, h.engine.ExportViewData(r.Context()), start)
}

// ClearOld handles DELETE /old.
func (h *Handler) ClearOld(w http.ResponseWriter, r *http.Request) {
	h.purge(w, r, h.engine.ClearOldViews)
}

// ClearAll handles DELETE /all.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	h.purge(w, r, h.engine.ClearAllViews)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request, op func(context.Context) *tracker.Pending) {
	start := time.Now()
	p := op(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), purgeWait)
	defer cancel()
	result := p.Wait(ctx)
	if result == models.Failed {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "local store rejected the purge", errors.New("store write failed"))
		return
	}
	respondSuccess(w, http.StatusOK, PurgeResponse{Sync: result.String()}, start)
}

// WebSocket handles GET /ws.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "websocket stream unavailable", nil)
		return
	}
	websocket.ServeWS(h.hub, h.upgrader, w, r)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		TrackedPosts:  len(h.engine.GetViewedPosts()),
		OpenSessions:  h.engine.OpenSessions(),
	}
	if h.hub != nil {
		resp.WSClients = h.hub.GetClientCount()
	}
	respondSuccess(w, http.StatusOK, resp, start)
}
