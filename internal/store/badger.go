// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
)

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// Key is the namespaced key holding the record.
	Key string

	SyncWrites  bool
	Compression bool

	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
}

// BadgerStore keeps the view log in an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	key    []byte
	now    func() time.Time
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens (or creates) the database.
func OpenBadger(o BadgerOptions) (*BadgerStore, error) {
	if o.Key == "" {
		return nil, errors.New("badger store: key is required")
	}
	if !o.InMemory && o.Path == "" {
		return nil, errors.New("badger store: path is required")
	}

	opts := badger.DefaultOptions(o.Path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = o.SyncWrites
	// A record is at most a few hundred KB; small tables keep the footprint low.
	opts.MemTableSize = 16 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.NumCompactors = 2
	if o.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", o.Path).
		Bool("in_memory", o.InMemory).
		Bool("sync_writes", o.SyncWrites).
		Msg("view store opened")

	return &BadgerStore{db: db, key: []byte(o.Key), now: time.Now}, nil
}

// Load implements Store.
func (s *BadgerStore) Load(ctx context.Context) ([]models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get view log: %w", err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.StoreErrors.WithLabelValues("load").Inc()
		}
		return nil, err
	}

	rec, err := Decode(data)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("decode").Inc()
		return nil, err
	}
	if rec.Dropped > 0 {
		logging.Warn().Int("dropped", rec.Dropped).Msg("skipped unusable observations in stored view log")
	}
	return rec.Views, nil
}

// Save implements Store.
func (s *BadgerStore) Save(ctx context.Context, views []models.Observation) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(views, s.now())
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(s.key, data))
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("save view log: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *BadgerStore) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key)
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("clear view log: %w", err)
	}
	return nil
}

// RunGC reclaims value-log space left by replaced records.
func (s *BadgerStore) RunGC(ratio float64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close implements Store. It is safe to call more than once.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("view store closed")
	return nil
}
