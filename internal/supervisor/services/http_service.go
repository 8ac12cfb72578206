// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/postviews/internal/logging"
)

// DefaultShutdownTimeout bounds connection draining when none is given.
const DefaultShutdownTimeout = 10 * time.Second

// HTTPServerService runs an HTTP server under suture.
//
// An *http.Server cannot be restarted after Shutdown, so build is called on
// every Serve to get a fresh one. The listener is bound before serving, so
// bind errors surface as a Serve error and the supervisor backs off.
type HTTPServerService struct {
	build           func() *http.Server
	shutdownTimeout time.Duration
	log             zerolog.Logger

	mu   sync.Mutex
	addr string
}

// NewHTTPServerService wraps build. A non-positive shutdownTimeout uses
// DefaultShutdownTimeout.
func NewHTTPServerService(build func() *http.Server, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &HTTPServerService{
		build:           build,
		shutdownTimeout: shutdownTimeout,
		log:             logging.WithComponent("http-server"),
	}
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	srv := h.build()

	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http server listen on %s: %w", addr, err)
	}
	h.setAddr(ln.Addr().String())
	defer h.setAddr("")

	h.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		h.log.Info().Msg("http server stopped")
		return ctx.Err()
	}
}

// Addr is the bound address while serving, otherwise "".
func (h *HTTPServerService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

func (h *HTTPServerService) setAddr(a string) {
	h.mu.Lock()
	h.addr = a
	h.mu.Unlock()
}

// String implements fmt.Stringer for suture logs.
func (h *HTTPServerService) String() string {
	return "http-server"
}
