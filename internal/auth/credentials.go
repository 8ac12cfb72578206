// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package auth is the boundary to the credential store owned by the
// authentication collaborator.
//
// The engine never logs in, refreshes or verifies tokens. It reads an
// opaque bearer token when one is available and sends requests
// unauthenticated otherwise.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/postviews/internal/config"
)

// CredentialStore supplies the current bearer token. An empty token with a
// nil error means no identity is available.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, typically from configuration.
type StaticToken string

// Token implements CredentialStore.
func (t StaticToken) Token(context.Context) (string, error) {
	return strings.TrimSpace(string(t)), nil
}

// EnvToken reads the token from the named environment variable on every call.
type EnvToken string

// Token implements CredentialStore.
func (e EnvToken) Token(context.Context) (string, error) {
	if e == "" {
		return "", nil
	}
	return strings.TrimSpace(os.Getenv(string(e))), nil
}

// FileToken reads the token from a file shared with the auth collaborator.
// A missing file means no identity.
type FileToken struct {
	Path string
}

// Token implements CredentialStore.
func (f FileToken) Token(ctx context.Context) (string, error) {
	if f.Path == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Chain returns the first non-empty token. Errors from one source do not
// stop the chain; the first error is returned only when every source is empty.
type Chain []CredentialStore

// Token implements CredentialStore.
func (c Chain) Token(ctx context.Context) (string, error) {
	var firstErr error
	for _, s := range c {
		tok, err := s.Token(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", firstErr
}

// FromConfig builds the credential chain: inline token, environment, file.
func FromConfig(cfg config.AuthConfig) CredentialStore {
	return Chain{
		StaticToken(cfg.Token),
		EnvToken(cfg.TokenEnv),
		FileToken{Path: cfg.TokenFile},
	}
}

// Bearer returns the token to attach to a request, or "" when there is
// none or it has expired. Store errors also yield "".
func Bearer(ctx context.Context, creds CredentialStore, now time.Time) string {
	if creds == nil {
		return ""
	}
	tok, err := creds.Token(ctx)
	if err != nil || tok == "" {
		return ""
	}
	if !Usable(tok, now) {
		return ""
	}
	return tok
}
