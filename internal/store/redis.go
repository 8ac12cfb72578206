// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
)

// RedisStore keeps the view log in a Redis string value. Several processes
// may share one key; the last Save wins.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. The store owns the client and
// closes it in Close.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key, now: time.Now}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) ([]models.Observation, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	rec, err := Decode(data)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("decode").Inc()
		return nil, err
	}
	if rec.Dropped > 0 {
		logging.Warn().Int("dropped", rec.Dropped).Str("key", s.key).Msg("skipped unusable observations in stored view log")
	}
	return rec.Views, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, views []models.Observation) error {
	data, err := Encode(views, s.now())
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		metrics.StoreErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	err := s.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
