// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/postviews/internal/events"
	"github.com/tomtom215/postviews/internal/logging"
)

// ErrSubscriptionClosed is returned by Bridge.Serve when the event stream
// ends while the bridge is still running.
var ErrSubscriptionClosed = errors.New("websocket: event subscription closed")

// Subscriber is the part of events.Bus the bridge reads from.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan events.ViewEvent, error)
}

// Bridge forwards view events from the bus to the hub.
type Bridge struct {
	sub Subscriber
	hub *Hub
}

// NewBridge creates a bridge from sub to hub.
func NewBridge(sub Subscriber, hub *Hub) *Bridge {
	return &Bridge{sub: sub, hub: hub}
}

// Serve subscribes and forwards until ctx ends. A stream that closes early
// is an error so a supervisor restarts the bridge.
func (b *Bridge) Serve(ctx context.Context) error {
	ch, err := b.sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to view events: %w", err)
	}
	logging.Debug().Msg("view event bridge started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			b.hub.BroadcastView(ev)
		}
	}
}

// String names the bridge in supervisor logs.
func (b *Bridge) String() string { return "view-event-bridge" }
