// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

/*
Package services adapts postviews components to suture.Service.

	HTTPServerService   api layer, builds a fresh *http.Server per start
	RetentionService    data layer, robfig/cron job calling ClearOldViews

The websocket hub and the view event bridge implement suture.Service
directly and are added to the messaging layer without a wrapper.
*/
package services
