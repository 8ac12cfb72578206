// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateVisibility(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRemote() error {
	r := c.Remote
	if r.BaseURL != "" {
		u, err := url.Parse(r.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{Field: "remote.base_url", Message: fmt.Sprintf("must be an http(s) URL, got %q", r.BaseURL)}
		}
	}
	if r.Timeout <= 0 || r.Timeout > 10*time.Second {
		return &ValidationError{Field: "remote.timeout", Message: "must be in (0, 10s]"}
	}
	if r.RateLimit < 0 {
		return &ValidationError{Field: "remote.rate_limit", Message: "must not be negative"}
	}
	if r.RateLimit > 0 && r.RateBurst < 1 {
		return &ValidationError{Field: "remote.rate_burst", Message: "must be at least 1 when rate limiting"}
	}
	if r.BreakerEnabled && (r.BreakerFailureRatio <= 0 || r.BreakerFailureRatio > 1) {
		return &ValidationError{Field: "remote.breaker_failure_ratio", Message: "must be in (0, 1]"}
	}
	return nil
}

func (c *Config) validateStore() error {
	s := c.Store
	switch s.Backend {
	case StoreBadger:
		if s.Path == "" {
			return &ValidationError{Field: "store.path", Message: "is required for the badger backend"}
		}
	case StoreRedis:
		if s.RedisAddr == "" {
			return &ValidationError{Field: "store.redis_addr", Message: "is required for the redis backend"}
		}
	case StoreMemory:
	default:
		return &ValidationError{Field: "store.backend", Message: fmt.Sprintf("unknown backend %q (badger, redis, memory)", s.Backend)}
	}
	if strings.TrimSpace(s.Key) == "" {
		return &ValidationError{Field: "store.key", Message: "must not be empty"}
	}
	return nil
}

func (c *Config) validateTracker() error {
	t := c.Tracker
	if t.MaxViews < 1 {
		return &ValidationError{Field: "tracker.max_views", Message: "must be at least 1"}
	}
	if t.DedupWindow < 0 {
		return &ValidationError{Field: "tracker.dedup_window", Message: "must not be negative"}
	}
	if t.Retention < 24*time.Hour {
		return &ValidationError{Field: "tracker.retention", Message: "must be at least 24h"}
	}
	if t.RecentLimit < 1 || t.StatsRecent < 1 || t.TopSources < 1 {
		return &ValidationError{Field: "tracker", Message: "recent_limit, stats_recent and top_sources must be at least 1"}
	}
	return nil
}

var validSources = []string{"feed", "modal", "profile", "search", "bookmark", "notification"}

func (c *Config) validateVisibility() error {
	if c.Visibility.DwellDelay < 0 {
		return &ValidationError{Field: "visibility.dwell_delay", Message: "must not be negative"}
	}
	if !slices.Contains(validSources, c.Visibility.Source) {
		return &ValidationError{Field: "visibility.source", Message: fmt.Sprintf("unknown source %q", c.Visibility.Source)}
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: fmt.Sprintf("must be 1-65535, got %d", c.Server.Port)}
	}
	if c.Server.RateLimit < 0 {
		return &ValidationError{Field: "server.rate_limit", Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return &ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return &ValidationError{Field: "logging.format", Message: "must be json or console"}
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
