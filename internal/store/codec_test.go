// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/postviews/internal/models"
)

func sampleViews(n int, base time.Time) []models.Observation {
	views := make([]models.Observation, n)
	for i := range views {
		views[i] = models.Observation{
			PostID:    "post-" + string(rune('a'+i%26)),
			ViewedAt:  base.Add(time.Duration(i) * time.Second),
			Source:    models.SourceFeed,
			SessionID: "s",
		}
	}
	return views
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotFound},
		{"not json", []byte("{views:"), ErrCorrupt},
		{"wrong shape", []byte(`{"views": "nope"}`), ErrCorrupt},
		{"future version", []byte(`{"version": 9, "views": []}`), ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeLegacyUnversionedBlob(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"views":[{"postId":"7","viewedAt":"2026-03-01T10:00:00.000Z","source":"modal","sessionId":"1700-abc","duration":2300}],"lastUpdated":"2026-03-01T10:00:01.000Z"}`)
	rec, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if rec.Version != SchemaVersion {
		t.Errorf("Version = %d, want %d", rec.Version, SchemaVersion)
	}
	if len(rec.Views) != 1 || rec.Views[0].PostID != "7" {
		t.Fatalf("unexpected views: %+v", rec.Views)
	}
	if !rec.Views[0].ViewedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("ViewedAt = %v", rec.Views[0].ViewedAt)
	}
	if d := rec.Views[0].DurationMs; d == nil || *d != 2300 {
		t.Errorf("legacy duration not carried over: %v", d)
	}
}

func TestDecodeDropsUnusableEntries(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"version":1,"views":[
		{"postId":"1","viewedAt":"2026-03-01T10:00:00Z","source":"feed","sessionId":"a"},
		{"postId":"","viewedAt":"2026-03-01T10:00:00Z","source":"feed","sessionId":"b"},
		{"postId":"2","viewedAt":"2026-03-01T10:00:00Z","source":"timeline","sessionId":"c"},
		{"postId":"3","source":"modal","sessionId":"d"}
	]}`)
	rec, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(rec.Views) != 1 {
		t.Errorf("kept %d views, want 1", len(rec.Views))
	}
	if rec.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", rec.Dropped)
	}
}

func TestEncodeKeepsDurations(t *testing.T) {
	t.Parallel()

	d := int64(1500)
	views := []models.Observation{{
		PostID: "p", ViewedAt: time.Now(), Source: models.SourceModal, SessionID: "s", DurationMs: &d,
	}}
	data, err := Encode(views, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Views[0].DurationMs == nil || *rec.Views[0].DurationMs != 1500 {
		t.Errorf("duration lost: %+v", rec.Views[0])
	}
	if rec.LastUpdated.IsZero() {
		t.Error("LastUpdated should be set")
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryStore()
	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty Load() error = %v, want ErrNotFound", err)
	}

	views := sampleViews(3, time.Now())
	if err := s.Save(ctx, views); err != nil {
		t.Fatal(err)
	}
	views[0].PostID = "mutated"

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].PostID != "post-a" {
		t.Errorf("Load() = %+v", got)
	}
	if s.Saves() != 1 {
		t.Errorf("Saves() = %d", s.Saves())
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Clear error = %v", err)
	}
}
