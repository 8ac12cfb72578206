// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package store

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/postviews/internal/models"
)

// SchemaVersion is the version written by Encode.
const SchemaVersion = 1

// Record is the persisted layout of the view log.
//
// Version 0 is the unversioned {views, lastUpdated} blob written by early
// clients; it has the same field layout and decodes as version 1.
type Record struct {
	Version     int                  `json:"version"`
	Views       []models.Observation `json:"views"`
	LastUpdated time.Time            `json:"lastUpdated"`

	// Dropped counts entries skipped on decode because they were unusable.
	Dropped int `json:"-"`
}

// storedRecord is the decode-side layout. Version 0 blobs carried the
// duration under "duration"; it is folded into DurationMs.
type storedRecord struct {
	Version     int                 `json:"version"`
	Views       []storedObservation `json:"views"`
	LastUpdated time.Time           `json:"lastUpdated"`
}

type storedObservation struct {
	models.Observation
	LegacyDuration *int64 `json:"duration,omitempty"`
}

// Encode serializes views into a current-version record.
func Encode(views []models.Observation, now time.Time) ([]byte, error) {
	if views == nil {
		views = []models.Observation{}
	}
	data, err := json.Marshal(Record{
		Version:     SchemaVersion,
		Views:       views,
		LastUpdated: now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode view log: %w", err)
	}
	return data, nil
}

// Decode parses a record. Entries without a post ID, with an unknown source
// or without a timestamp are dropped and counted rather than failing the
// whole log.
func Decode(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if stored.Version < 0 || stored.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupt, stored.Version)
	}

	rec := &Record{
		Version:     SchemaVersion,
		Views:       make([]models.Observation, 0, len(stored.Views)),
		LastUpdated: stored.LastUpdated,
	}
	for _, v := range stored.Views {
		o := v.Observation
		if o.PostID == "" || !o.Source.Valid() || o.ViewedAt.IsZero() {
			rec.Dropped++
			continue
		}
		if o.DurationMs == nil && v.LegacyDuration != nil {
			o.DurationMs = v.LegacyDuration
		}
		rec.Views = append(rec.Views, o)
	}
	return rec, nil
}
