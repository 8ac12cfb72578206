// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

/*
Package supervisor runs the postviews services under a suture v4 tree.

	postviews
	├── data-layer
	│   └── retention-scheduler (when retention.schedule is set)
	├── messaging-layer
	│   ├── websocket-hub
	│   └── view-event-bridge
	└── api-layer
	    └── http-server

Each layer restarts its own children with backoff, so a crashing bridge
does not take the HTTP server down. Supervisor events go to the process
logger through sutureslog and the zerolog slog bridge:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
		return err
	}
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(build, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
