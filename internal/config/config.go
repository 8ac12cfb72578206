// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package config loads postviews configuration.
//
// Loading order (koanf v2):
//  1. Defaults from defaultConfig()
//  2. Optional YAML file (CONFIG_PATH, then DefaultConfigPaths)
//  3. Environment variables, mapped explicitly in envTransformFunc
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("invalid configuration")
//	}
//	st, err := store.Open(ctx, cfg.Store)
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Remote     RemoteConfig     `koanf:"remote"`
	Auth       AuthConfig       `koanf:"auth"`
	Store      StoreConfig      `koanf:"store"`
	Tracker    TrackerConfig    `koanf:"tracker"`
	Visibility VisibilityConfig `koanf:"visibility"`
	Retention  RetentionConfig  `koanf:"retention"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// RemoteConfig configures the remote analytics backend.
// An empty BaseURL runs the engine local-only.
type RemoteConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is requests per second toward the backend; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	BreakerEnabled      bool          `koanf:"breaker_enabled"`
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// AuthConfig says where the bearer token comes from. The first non-empty
// source wins: Token, then the TokenEnv variable, then TokenFile.
type AuthConfig struct {
	Token     string `koanf:"token"`
	TokenEnv  string `koanf:"token_env"`
	TokenFile string `koanf:"token_file"`

	// ResolveUserID fills a missing user ID from the token subject.
	ResolveUserID bool `koanf:"resolve_user_id"`
}

// Store backends.
const (
	StoreBadger = "badger"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// StoreConfig selects and configures the persistent local store.
type StoreConfig struct {
	Backend       string `koanf:"backend"`
	Path          string `koanf:"path"`
	Key           string `koanf:"key"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// TrackerConfig holds engine tunables.
type TrackerConfig struct {
	MaxViews     int           `koanf:"max_views"`
	DedupWindow  time.Duration `koanf:"dedup_window"`
	Retention    time.Duration `koanf:"retention"`
	RecentLimit  int           `koanf:"recent_limit"`
	StatsRecent  int           `koanf:"stats_recent"`
	TopSources   int           `koanf:"top_sources"`
	SessionMatch time.Duration `koanf:"session_match"`
}

// VisibilityConfig configures the timer-based visibility adapter.
type VisibilityConfig struct {
	DwellDelay time.Duration `koanf:"dwell_delay"`
	Source     string        `koanf:"source"`
}

// RetentionConfig schedules periodic old-view purges. Schedule is a
// robfig/cron spec; empty disables the job.
type RetentionConfig struct {
	Schedule string `koanf:"schedule"`
}

// ServerConfig configures the local HTTP surface.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
