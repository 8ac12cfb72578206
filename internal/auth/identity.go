// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package auth

import (
	"context"
	"time"
)

// IdentityResolver supplies the user ID for views recorded without one,
// reading it from the current token's claims.
type IdentityResolver struct {
	creds CredentialStore
	now   func() time.Time
}

// NewIdentityResolver wraps creds.
func NewIdentityResolver(creds CredentialStore) *IdentityResolver {
	return &IdentityResolver{creds: creds, now: time.Now}
}

// UserID returns the identity in the current token, or "" when the token
// is missing, opaque or expired.
func (r *IdentityResolver) UserID(ctx context.Context) string {
	tok := Bearer(ctx, r.creds, r.now())
	if tok == "" {
		return ""
	}
	c, err := ParseClaims(tok)
	if err != nil {
		return ""
	}
	return c.Identity()
}
