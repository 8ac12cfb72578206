// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"postviews.yaml",
	"postviews.yml",
	"/etc/postviews/config.yaml",
	"/etc/postviews/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultStoreKey is the namespaced key the view log is stored under.
const DefaultStoreKey = "postviews:views"

func defaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:             "",
			Timeout:             10 * time.Second,
			RateLimit:           20,
			RateBurst:           40,
			BreakerEnabled:      true,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      2 * time.Minute,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
		},
		Auth: AuthConfig{
			TokenEnv:      "POSTVIEWS_AUTH_TOKEN",
			ResolveUserID: false,
		},
		Store: StoreConfig{
			Backend:   StoreBadger,
			Path:      "/data/postviews",
			Key:       DefaultStoreKey,
			RedisAddr: "127.0.0.1:6379",
		},
		Tracker: TrackerConfig{
			MaxViews:     1000,
			DedupWindow:  5 * time.Minute,
			Retention:    30 * 24 * time.Hour,
			RecentLimit:  20,
			StatsRecent:  10,
			TopSources:   5,
			SessionMatch: time.Second,
		},
		Visibility: VisibilityConfig{
			DwellDelay: time.Second,
			Source:     "feed",
		},
		Retention: RetentionConfig{
			Schedule: "@every 1h",
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            8384,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       300,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			continue
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"postviews_remote_url":            "remote.base_url",
	"postviews_remote_timeout":        "remote.timeout",
	"postviews_remote_rate_limit":     "remote.rate_limit",
	"postviews_remote_rate_burst":     "remote.rate_burst",
	"postviews_breaker_enabled":       "remote.breaker_enabled",
	"postviews_breaker_max_requests":  "remote.breaker_max_requests",
	"postviews_breaker_interval":      "remote.breaker_interval",
	"postviews_breaker_timeout":       "remote.breaker_timeout",
	"postviews_breaker_min_requests":  "remote.breaker_min_requests",
	"postviews_breaker_failure_ratio": "remote.breaker_failure_ratio",

	"postviews_token":           "auth.token",
	"postviews_token_env":       "auth.token_env",
	"postviews_token_file":      "auth.token_file",
	"postviews_resolve_user_id": "auth.resolve_user_id",

	"postviews_store":          "store.backend",
	"postviews_store_path":     "store.path",
	"postviews_store_key":      "store.key",
	"postviews_redis_addr":     "store.redis_addr",
	"postviews_redis_password": "store.redis_password",
	"postviews_redis_db":       "store.redis_db",

	"postviews_max_views":     "tracker.max_views",
	"postviews_dedup_window":  "tracker.dedup_window",
	"postviews_retention":     "tracker.retention",
	"postviews_recent_limit":  "tracker.recent_limit",
	"postviews_stats_recent":  "tracker.stats_recent",
	"postviews_top_sources":   "tracker.top_sources",
	"postviews_session_match": "tracker.session_match",

	"postviews_dwell_delay":       "visibility.dwell_delay",
	"postviews_visibility_source": "visibility.source",

	"postviews_retention_schedule": "retention.schedule",

	"postviews_http_enabled":           "server.enabled",
	"postviews_http_host":              "server.host",
	"postviews_http_port":              "server.port",
	"postviews_http_read_timeout":      "server.read_timeout",
	"postviews_http_write_timeout":     "server.write_timeout",
	"postviews_http_shutdown_timeout":  "server.shutdown_timeout",
	"postviews_cors_origins":           "server.cors_origins",
	"postviews_http_rate_limit":        "server.rate_limit",
	"postviews_http_rate_limit_window": "server.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are ignored by koanf.
//
//	POSTVIEWS_REMOTE_URL -> remote.base_url
//	LOG_LEVEL            -> logging.level
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
