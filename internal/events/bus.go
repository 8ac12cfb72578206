// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package events carries local notifications about recorded views.
//
// The Bus is an in-process Watermill gochannel pub/sub. The engine publishes
// one ViewEvent per new observation on TopicPostViewed, right after the
// local write and without waiting for the backend. Subscribers such as the
// WebSocket bridge receive decoded events.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
)

// TopicPostViewed is the topic for new observations.
const TopicPostViewed = "post.viewed"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("events: bus closed")

// ViewEvent announces a new observation.
type ViewEvent struct {
	EventID   string        `json:"eventId"`
	PostID    string        `json:"postId"`
	Source    models.Source `json:"source"`
	UserID    string        `json:"userId,omitempty"`
	SessionID string        `json:"sessionId"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewViewEvent builds the event for an observation.
func NewViewEvent(o models.Observation) ViewEvent {
	return ViewEvent{
		EventID:   uuid.New().String(),
		PostID:    o.PostID,
		Source:    o.Source,
		UserID:    o.UserID,
		SessionID: o.SessionID,
		Timestamp: o.ViewedAt,
	}
}

// Publisher is what the engine needs from the bus.
type Publisher interface {
	PublishView(ctx context.Context, ev ViewEvent) error
}

// Ensure Bus implements Publisher
var _ Publisher = (*Bus)(nil)

// Bus is an in-process pub/sub for view events.
type Bus struct {
	pubsub *gochannel.GoChannel
	mu     sync.RWMutex
	closed bool
}

// BusConfig tunes the underlying channel.
type BusConfig struct {
	// OutputBuffer is the per-subscriber buffer.
	OutputBuffer int64
}

// NewBus creates a bus. A nil logger routes Watermill logs through zerolog.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}
	if cfg.OutputBuffer <= 0 {
		cfg.OutputBuffer = 256
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.OutputBuffer,
		}, logger),
	}
}

// PublishView implements Publisher. Events are dropped when nobody is
// subscribed.
func (b *Bus) PublishView(_ context.Context, ev ViewEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("serialize view event: %w", err)
	}

	msg := message.NewMessage(ev.EventID, data)
	msg.Metadata.Set("post_id", ev.PostID)
	msg.Metadata.Set("source", string(ev.Source))

	if err := b.pubsub.Publish(TopicPostViewed, msg); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", TopicPostViewed, err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe returns decoded events until ctx is canceled or the bus closes.
// Undecodable messages are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan ViewEvent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	messages, err := b.pubsub.Subscribe(ctx, TopicPostViewed)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", TopicPostViewed, err)
	}

	out := make(chan ViewEvent)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev ViewEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable view event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
