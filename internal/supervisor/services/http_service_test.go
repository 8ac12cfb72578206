// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func buildOn(addr string) func() *http.Server {
	return func() *http.Server {
		return &http.Server{Addr: addr, Handler: okHandler(), ReadHeaderTimeout: time.Second}
	}
}

func waitAddr(t *testing.T, svc *HTTPServerService) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := svc.Addr(); a != "" {
			return a
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server did not start listening")
	return ""
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{0, -5 * time.Second} {
		svc := NewHTTPServerService(buildOn("127.0.0.1:0"), d)
		if svc.shutdownTimeout != DefaultShutdownTimeout {
			t.Errorf("timeout(%v) = %v, want %v", d, svc.shutdownTimeout, DefaultShutdownTimeout)
		}
	}
	if got := NewHTTPServerService(buildOn(""), time.Second).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

func TestHTTPServerService_ServesUntilCanceled(t *testing.T) {
	t.Parallel()

	svc := NewHTTPServerService(buildOn("127.0.0.1:0"), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	addr := waitAddr(t, svc)
	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if svc.Addr() != "" {
		t.Errorf("Addr after stop = %q, want empty", svc.Addr())
	}
}

func TestHTTPServerService_BindFailure(t *testing.T) {
	t.Parallel()

	first := NewHTTPServerService(buildOn("127.0.0.1:0"), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Serve(ctx) }()
	addr := waitAddr(t, first)

	second := NewHTTPServerService(buildOn(addr), time.Second)
	err := second.Serve(context.Background())
	if err == nil {
		t.Fatal("expected bind error on a used port")
	}
}

func TestHTTPServerService_RunsUnderSupervisor(t *testing.T) {
	t.Parallel()

	builds := make(chan struct{}, 10)
	build := func() *http.Server {
		builds <- struct{}{}
		return buildOn("127.0.0.1:0")()
	}
	svc := NewHTTPServerService(build, time.Second)

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          2 * time.Second,
	})
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	waitAddr(t, svc)
	cancel()
	<-errCh

	if len(builds) < 1 {
		t.Error("build was never called")
	}
}
