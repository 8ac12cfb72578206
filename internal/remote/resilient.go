// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/postviews/internal/auth"
	"github.com/tomtom215/postviews/internal/config"
	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/metrics"
	"github.com/tomtom215/postviews/internal/models"
)

// ErrCircuitOpen is returned without contacting the backend while the
// breaker is open or saturated in half-open state.
var ErrCircuitOpen = errors.New("remote: circuit breaker open")

// breakerName labels the breaker in logs and metrics.
const breakerName = "post-views-api"

// Ensure ResilientClient implements Client
var _ Client = (*ResilientClient)(nil)

// ResilientClient wraps a Client with a rate limiter and a circuit breaker.
// Either may be disabled by configuration.
type ResilientClient struct {
	next    Client
	cb      *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
	name    string
}

// NewResilientClient wraps next according to cfg.
func NewResilientClient(next Client, cfg config.RemoteConfig) *ResilientClient {
	rc := &ResilientClient{next: next, name: breakerName}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		rc.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.BreakerEnabled {
		metrics.CircuitBreakerState.WithLabelValues(rc.name).Set(0)
		rc.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        rc.name,
			MaxRequests: cfg.BreakerMaxRequests,
			Interval:    cfg.BreakerInterval,
			Timeout:     cfg.BreakerTimeout,

			// Opens when the failure ratio reaches the threshold over
			// at least BreakerMinRequests requests.
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.BreakerMinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				shouldTrip := failureRatio >= cfg.BreakerFailureRatio
				if shouldTrip {
					logging.Warn().
						Uint32("failures", counts.TotalFailures).
						Float64("failure_rate", failureRatio*100).
						Msg("[CIRCUIT BREAKER] Opening circuit")
				}
				return shouldTrip
			},

			// Client errors mean the request was wrong, not that the
			// backend is unhealthy.
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				var se *StatusError
				if errors.As(err, &se) {
					return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
				}
				return false
			},

			OnStateChange: func(name string, from, to gobreaker.State) {
				fromStr, toStr := stateToString(from), stateToString(to)
				logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
				metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			},
		})
	}
	return rc
}

// New builds the client the engine should use for cfg, or nil when no
// backend is configured.
func New(cfg config.RemoteConfig, creds auth.CredentialStore) Client {
	if cfg.BaseURL == "" {
		return nil
	}
	return NewResilientClient(NewHTTPClient(cfg.BaseURL, cfg.Timeout, creds), cfg)
}

// State returns the breaker state, or closed when the breaker is disabled.
func (rc *ResilientClient) State() gobreaker.State {
	if rc.cb == nil {
		return gobreaker.StateClosed
	}
	return rc.cb.State()
}

// execute runs fn behind the limiter and breaker.
func (rc *ResilientClient) execute(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	if rc.limiter != nil {
		if err := rc.limiter.Wait(ctx); err != nil {
			metrics.RemoteRequests.WithLabelValues(op, "rejected").Inc()
			return nil, fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
	}
	if rc.cb == nil {
		return fn()
	}

	result, err := rc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(rc.name, "rejected").Inc()
			metrics.RemoteRequests.WithLabelValues(op, "rejected").Inc()
			logging.Debug().Str("operation", op).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("%s: %w", op, ErrCircuitOpen)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(rc.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(rc.name, "success").Inc()
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// CreateView implements Client.
func (rc *ResilientClient) CreateView(ctx context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error) {
	return castResult[*models.RemoteView](rc.execute(ctx, "create_view", func() (any, error) {
		return rc.next.CreateView(ctx, postID, req)
	}))
}

// UpdateView implements Client.
func (rc *ResilientClient) UpdateView(ctx context.Context, postID string, req models.RemoteViewRequest) (*models.RemoteView, error) {
	return castResult[*models.RemoteView](rc.execute(ctx, "update_view", func() (any, error) {
		return rc.next.UpdateView(ctx, postID, req)
	}))
}

// PostStats implements Client.
func (rc *ResilientClient) PostStats(ctx context.Context, postID string) (*models.RemotePostStats, error) {
	return castResult[*models.RemotePostStats](rc.execute(ctx, "post_stats", func() (any, error) {
		return rc.next.PostStats(ctx, postID)
	}))
}

// Analytics implements Client.
func (rc *ResilientClient) Analytics(ctx context.Context) (*models.RemoteAnalytics, error) {
	return castResult[*models.RemoteAnalytics](rc.execute(ctx, "analytics", func() (any, error) {
		return rc.next.Analytics(ctx)
	}))
}

// TopLocations implements Client.
func (rc *ResilientClient) TopLocations(ctx context.Context, limit int) ([]models.RemoteLocation, error) {
	return castResult[[]models.RemoteLocation](rc.execute(ctx, "top_locations", func() (any, error) {
		return rc.next.TopLocations(ctx, limit)
	}))
}

// PurgeOld implements Client.
func (rc *ResilientClient) PurgeOld(ctx context.Context, daysOld int) error {
	_, err := rc.execute(ctx, "purge_old", func() (any, error) {
		return nil, rc.next.PurgeOld(ctx, daysOld)
	})
	return err
}

// PurgeAll implements Client.
func (rc *ResilientClient) PurgeAll(ctx context.Context) error {
	_, err := rc.execute(ctx, "purge_all", func() (any, error) {
		return nil, rc.next.PurgeAll(ctx)
	})
	return err
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
