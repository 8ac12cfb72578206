// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/postviews/internal/events"
)

func newWSServer(t *testing.T, hub *Hub, origins []string) *httptest.Server {
	t.Helper()
	upgrader := NewUpgrader(origins)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, upgrader, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

func TestServeWSStreamsViews(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	srv := newWSServer(t, hub, []string{"*"})

	conn, _, err := dial(t, srv, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.BroadcastView(events.ViewEvent{PostID: "42", Source: "feed", SessionID: "s"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
		Data struct {
			PostID string `json:"postId"`
		} `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != MessageTypePostViewed || msg.Data.PostID != "42" {
		t.Errorf("message = %+v", msg)
	}
}

func TestClientPingPong(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	srv := newWSServer(t, hub, []string{"*"})

	conn, _, err := dial(t, srv, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypePong {
		t.Errorf("type = %q, want pong", msg.Type)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	srv := newWSServer(t, hub, []string{"*"})

	conn, _, err := dial(t, srv, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitForClients(t, hub, 1)
	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestUpgraderOrigins(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	srv := newWSServer(t, hub, []string{"https://app.example.com"})

	if _, resp, err := dial(t, srv, nil); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("missing origin: err = %v", err)
	}
	if _, _, err := dial(t, srv, http.Header{"Origin": {"https://evil.example.com"}}); err == nil {
		t.Error("foreign origin accepted")
	}

	conn, _, err := dial(t, srv, http.Header{"Origin": {"https://app.example.com"}})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = conn.Close()
}

func TestClientIDsIncrease(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	a, b := NewClient(hub, nil), NewClient(hub, nil)
	if b.ID() <= a.ID() {
		t.Errorf("IDs %d, %d not increasing", a.ID(), b.ID())
	}
}
