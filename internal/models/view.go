// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the presentation context that produced a view.
type Source string

// Sources accepted by the backend view-source enum.
const (
	SourceFeed         Source = "feed"
	SourceModal        Source = "modal"
	SourceProfile      Source = "profile"
	SourceSearch       Source = "search"
	SourceBookmark     Source = "bookmark"
	SourceNotification Source = "notification"
)

// AllSources lists every valid source in declaration order.
var AllSources = []Source{
	SourceFeed,
	SourceModal,
	SourceProfile,
	SourceSearch,
	SourceBookmark,
	SourceNotification,
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceFeed, SourceModal, SourceProfile, SourceSearch, SourceBookmark, SourceNotification:
		return true
	}
	return false
}

func (s Source) String() string { return string(s) }

// ParseSource parses a source name case-insensitively.
func ParseSource(v string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown view source %q", v)
	}
	return s, nil
}

// Observation is a single recorded view of a post.
type Observation struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId,omitempty"`
	ViewedAt  time.Time `json:"viewedAt"`
	Source    Source    `json:"source"`
	SessionID string    `json:"sessionId"`

	// DurationMs stays nil until a session for this view closes.
	DurationMs *int64 `json:"durationMs,omitempty"`
}

// HasDuration reports whether a session has closed on this observation.
func (o *Observation) HasDuration() bool {
	return o.DurationMs != nil
}

// Clone returns a deep copy; the duration pointer is not shared.
func (o Observation) Clone() Observation {
	if o.DurationMs != nil {
		d := *o.DurationMs
		o.DurationMs = &d
	}
	return o
}

// SyncResult is the outcome of a best-effort operation that has a local
// effect and an optional remote side.
type SyncResult int

const (
	// Skipped means the call was a no-op (duplicate view, session not open).
	Skipped SyncResult = iota
	// Applied means the local effect and the remote call both succeeded.
	Applied
	// LocalOnly means the local effect succeeded but the remote call failed
	// or no remote is configured.
	LocalOnly
	// Failed means the local store write failed. In-memory state was still
	// updated and will be written again on the next successful save.
	Failed
)

func (r SyncResult) String() string {
	switch r {
	case Skipped:
		return "skipped"
	case Applied:
		return "applied"
	case LocalOnly:
		return "local_only"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("SyncResult(%d)", int(r))
	}
}

// MarshalText encodes the result by name.
func (r SyncResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a result name.
func (r *SyncResult) UnmarshalText(b []byte) error {
	switch string(b) {
	case "skipped":
		*r = Skipped
	case "applied":
		*r = Applied
	case "local_only":
		*r = LocalOnly
	case "failed":
		*r = Failed
	default:
		return fmt.Errorf("unknown sync result %q", string(b))
	}
	return nil
}
