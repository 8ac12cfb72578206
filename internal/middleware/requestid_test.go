// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/postviews/internal/logging"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	t.Parallel()

	var capturedID, loggingID, correlationID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		loggingID = logging.RequestIDFromContext(r.Context())
		correlationID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	responseID := rec.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", responseID, err)
	}
	if capturedID != responseID || loggingID != responseID {
		t.Errorf("context IDs %q/%q, header %q", capturedID, loggingID, responseID)
	}
	if correlationID == "" {
		t.Error("expected a correlation ID in context")
	}
}

func TestRequestID_PreservesUpstreamID(t *testing.T) {
	t.Parallel()

	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "upstream-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured != "upstream-123" || rec.Header().Get(HeaderRequestID) != "upstream-123" {
		t.Errorf("captured %q, header %q", captured, rec.Header().Get(HeaderRequestID))
	}
}

func TestRequestID_ReplacesOversizedID(t *testing.T) {
	t.Parallel()

	handler := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); len(got) > maxRequestIDLen {
		t.Errorf("oversized upstream ID kept (%d bytes)", len(got))
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	t.Parallel()
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}
