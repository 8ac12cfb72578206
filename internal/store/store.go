// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package store persists the view log.
//
// The whole log is written as one versioned record under a single
// namespaced key. Every Save replaces the record, so processes sharing a
// store see last-write-wins semantics; no cross-process locking is done.
//
// Backends:
//   - BadgerStore: embedded durable key/value store (default)
//   - RedisStore: shared store for several processes on one host or cluster
//   - MemoryStore: tests and ephemeral runs
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/postviews/internal/config"
	"github.com/tomtom215/postviews/internal/models"
)

var (
	// ErrNotFound is returned by Load when nothing has been saved yet.
	ErrNotFound = errors.New("store: no view log saved")

	// ErrCorrupt is returned by Load when the saved record cannot be decoded.
	ErrCorrupt = errors.New("store: view log record is corrupt")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Store is the persistence boundary of the engine.
type Store interface {
	// Load returns the saved observations in log order.
	Load(ctx context.Context) ([]models.Observation, error)

	// Save replaces the saved log with views.
	Save(ctx context.Context, views []models.Observation) error

	// Clear removes the saved log. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	Close() error
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	key := cfg.Key
	if key == "" {
		key = config.DefaultStoreKey
	}

	switch cfg.Backend {
	case config.StoreBadger, "":
		return OpenBadger(BadgerOptions{Path: cfg.Path, Key: key, SyncWrites: true, Compression: true})
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, key), nil
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
