// Package ratelimit enforces per-client request budgets on the compliance
// API. Clients are keyed by IP and endpoint class; counters use fixed
// windows. The middleware fails open: a broken store must never block
// compliance checks.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassCheck covers the comparison endpoints; each request runs the
	// full engine.
	ClassCheck EndpointClass = "check"
	// ClassRead covers cheap lookups like the schedule document.
	ClassRead EndpointClass = "read"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	return c == ClassCheck || c == ClassRead
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Store counts requests per key within fixed windows.
type Store interface {
	// Allow records one request against key and reports whether it fits
	// within limit for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Limits carries the per-class request budgets.
type Limits struct {
	CheckPerWindow int
	ReadPerWindow  int
	Window         time.Duration
}

// DefaultLimits returns the budgets used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		CheckPerWindow: 60,
		ReadPerWindow:  300,
		Window:         time.Minute,
	}
}

// ForClass returns the request budget for an endpoint class.
func (l Limits) ForClass(class EndpointClass) int {
	switch class {
	case ClassCheck:
		return l.CheckPerWindow
	case ClassRead:
		return l.ReadPerWindow
	default:
		return l.CheckPerWindow
	}
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where client-controlled identifiers
// containing ':' could manipulate adjacent rate limit buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// Key builds the store key for a client IP and endpoint class.
func Key(class EndpointClass, ip string) string {
	return fmt.Sprintf("rl:%s:ip:%s", class, SanitizeKeySegment(ip))
}
