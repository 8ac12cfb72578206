// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

/*
Package websocket streams new-view notifications to connected clients.

It uses gorilla/websocket with a hub-client layout:

	events.Bus ──► Bridge ──► Hub ──┬──► Client
	                                ├──► Client
	                                └──► Client

Each client runs a readPump (pings, close detection) and a writePump
(messages, keepalive). Clients whose send buffer fills are dropped.

Messages are JSON objects with a type and data:

	{"type":"post_viewed","data":{"eventId":"...","postId":"42","source":"feed",...}}

A client may send {"type":"ping"} and receives {"type":"pong"}.

Hub and Bridge both implement suture's Service interface through
Serve(ctx) error and are run under the supervisor tree.
*/
package websocket
