// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/postviews/internal/models"
)

// MemoryStore keeps the encoded record in memory. It goes through the same
// codec as the durable backends, so Load never aliases saved slices.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWithRaw returns a store preloaded with raw record bytes.
// Tests use it to simulate legacy or corrupt payloads.
func NewMemoryStoreWithRaw(raw []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), raw...)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()

	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return rec.Views, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, views []models.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(views, time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.saves++
	s.mu.Unlock()
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Raw returns a copy of the encoded record, or nil when empty.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil
	}
	return append([]byte(nil), s.data...)
}
