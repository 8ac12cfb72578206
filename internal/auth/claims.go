// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT indicates an opaque token that carries no readable claims.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims are the fields the engine reads from a token. Signatures are not
// verified; the backend does that.
type Claims struct {
	Subject   string
	UserID    string
	ExpiresAt time.Time
}

// Identity returns the user ID claim, falling back to the subject.
func (c *Claims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Expired reports whether the token has an expiry in the past.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

var parser = jwt.NewParser()

// ParseClaims decodes a JWT without verifying it.
func ParseClaims(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	c := &Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	c.UserID = userIDClaim(mapClaims)
	return c, nil
}

// userIDClaim reads "userId" or "uid", which the backend issues as a number.
func userIDClaim(claims jwt.MapClaims) string {
	for _, key := range []string{"userId", "uid"} {
		switch v := claims[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

// Usable reports whether a token should be sent. Opaque tokens are always
// usable; JWTs are usable until they expire.
func Usable(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	c, err := ParseClaims(token)
	if err != nil {
		return true
	}
	return !c.Expired(now)
}
