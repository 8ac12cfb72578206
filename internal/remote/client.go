// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package remote talks to the backend analytics store under
// /api/v1/post-views.
//
// Every call is best-effort from the engine's point of view. This package
// reports failures as errors; the engine decides to log and continue.
// Nothing here retries.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/postviews/internal/auth"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
)

// BasePath is the backend prefix for every view endpoint.
const BasePath = "/api/v1/post-views"

// maxErrorBody caps how much of a failed response is kept.
const maxErrorBody = 512

// ErrDecode wraps malformed response bodies.
var ErrDecode = errors.New("remote: malformed response body")

// StatusError is a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client is the backend contract used by the engine.
type Client interface {
	CreateView(ctx context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error)
	UpdateView(ctx context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error)
	PostStats(ctx context.Context, postID string) (*models.RemotePostStats, error)
	Analytics(ctx context.Context) (*models.RemoteAnalytics, error)
	TopLocations(ctx context.Context, limit int) ([]models.RemoteLocation, error)
	PurgeOld(ctx context.Context, daysOld int) error
	PurgeAll(ctx context.Context) error
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// HTTPClient implements Client over HTTP with JSON bodies.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	creds      auth.CredentialStore
	now        func() time.Time
}

// NewHTTPClient creates a client for the backend at baseURL
// (e.g. https://api.example.com). creds may be nil for anonymous calls.
func NewHTTPClient(baseURL string, timeout time.Duration, creds auth.CredentialStore) *HTTPClient {
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPClient{
		baseURL: baseURL + BasePath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		creds: creds,
		now:   time.Now,
	}
}

// CreateView issues POST /posts/{postId}.
func (c *HTTPClient) CreateView(ctx context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error) {
	var view models.RemoteView
	if err := c.do(ctx, "create_view", http.MethodPost, postPath(postID), req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateView issues PUT /posts/{postId} with the closed session's duration.
func (c *HTTPClient) UpdateView(ctx context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error) {
	var view models.RemoteView
	if err := c.do(ctx, "update_view", http.MethodPut, postPath(postID), req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// PostStats issues GET /posts/{postId}/stats.
func (c *HTTPClient) PostStats(ctx context.Context, postID string) (*models.RemotePostStats, error) {
	var stats models.RemotePostStats
	if err := c.do(ctx, "post_stats", http.MethodGet, postPath(postID)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Analytics issues GET /analytics.
func (c *HTTPClient) Analytics(ctx context.Context) (*models.RemoteAnalytics, error) {
	var summary models.RemoteAnalytics
	if err := c.do(ctx, "analytics", http.MethodGet, "/analytics", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// TopLocations issues GET /locations/top?limit=N.
func (c *HTTPClient) TopLocations(ctx context.Context, limit int) ([]models.RemoteLocation, error) {
	path := "/locations/top?limit=" + strconv.Itoa(limit)
	var locations []models.RemoteLocation
	if err := c.do(ctx, "top_locations", http.MethodGet, path, nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// PurgeOld issues DELETE /old?daysOld=N.
func (c *HTTPClient) PurgeOld(ctx context.Context, daysOld int) error {
	return c.do(ctx, "purge_old", http.MethodDelete, "/old?daysOld="+strconv.Itoa(daysOld), nil, nil)
}

// PurgeAll issues DELETE /all.
func (c *HTTPClient) PurgeAll(ctx context.Context) error {
	return c.do(ctx, "purge_all", http.MethodDelete, "/all", nil, nil)
}

func postPath(postID string) string {
	return "/posts/" + url.PathEscape(postID)
}

// do performs one request. A nil out discards the response body.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.RecordRemoteCall(op, outcome, time.Since(start))
	}()

	reqBody := io.Reader(http.NoBody)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: create request failed: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := auth.Bearer(ctx, c.creds, c.now()); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, op, err)
	}
	return nil
}
