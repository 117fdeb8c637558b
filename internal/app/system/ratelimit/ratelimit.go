// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// DefaultPrefix is used when Options.Prefix is empty.
const DefaultPrefix = "rate_limit"

// Options configures one fixed-window policy.
type Options struct {
	Limit  int           // max hits per window
	Window time.Duration // window length; also the counter's TTL
	Prefix string        // key prefix, see Key
}

// Policies for the protected actions. The prefixes are part of the key
// contract with the counter store and show up in raw key inspection.
var (
	Login         = Options{Limit: 5, Window: 5 * time.Minute, Prefix: "rl:login"}
	PasswordReset = Options{Limit: 3, Window: time.Hour, Prefix: "rl:password_reset"}
	Invitation    = Options{Limit: 10, Window: time.Hour, Prefix: "rl:invitation"}

	// LoginIP caps attempts from one address across all emails.
	LoginIP = Options{Limit: 10, Window: time.Minute, Prefix: "rl:login_ip"}
)

// Key returns the counter key for identifier under prefix.
func Key(prefix, identifier string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + identifier
}

// Result is the outcome of Check.
type Result struct {
	Success bool
	Current int
	Limit   int
	ResetIn time.Duration
}

// Message is the user-facing text for a rejected request.
func (r Result) Message() string {
	if r.Success {
		return ""
	}
	return fmt.Sprintf("Too many attempts. Please try again in %s.", humanWait(r.ResetIn))
}

// RetryAfter is the Retry-After header value in whole seconds (at least 1).
func (r Result) RetryAfter() string {
	secs := int(math.Ceil(r.ResetIn.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func humanWait(d time.Duration) string {
	switch {
	case d <= time.Minute:
		secs := int(math.Ceil(d.Seconds()))
		if secs <= 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	default:
		mins := int(math.Ceil(d.Minutes()))
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
}

// Counter is the external fixed-window counter store.
type Counter interface {
	// Hit increments key and returns the new count and the key's remaining
	// lifetime. The first hit of a window (or a key without a TTL) gets a
	// TTL of window.
	Hit(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	// Del removes key.
	Del(ctx context.Context, key string) error
}

// Limiter applies fixed-window policies against a Counter. A nil Counter
// means rate limiting is not configured and every check passes.
type Limiter struct {
	counter Counter
	log     *zap.Logger
}

// New creates a Limiter.
func New(counter Counter, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{counter: counter, log: logger}
}

// Check counts one hit for identifier.
//
// Fail-open: when the counter is unconfigured or returns an error, the hit is
// allowed with Current=1. An outage of the counter store must not lock every
// user out of sign-in.
func (l *Limiter) Check(ctx context.Context, identifier string, opts Options) Result {
	key := Key(opts.Prefix, identifier)
	open := Result{Success: true, Current: 1, Limit: opts.Limit, ResetIn: opts.Window}

	if l == nil || l.counter == nil {
		return open
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), l.log, "rate limit check")
	defer cancel()

	count, ttl, err := l.counter.Hit(ctx, key, opts.Window)
	if err != nil {
		l.log.Warn("rate limit counter unavailable; allowing request",
			zap.String("key", key),
			zap.Error(err))
		return open
	}
	if ttl <= 0 {
		ttl = opts.Window
	}

	res := Result{
		Success: count <= int64(opts.Limit),
		Current: int(count),
		Limit:   opts.Limit,
		ResetIn: ttl,
	}
	if !res.Success {
		l.log.Info("rate limit exceeded",
			zap.String("key", key),
			zap.Int("current", res.Current),
			zap.Int("limit", res.Limit),
			zap.Duration("reset_in", res.ResetIn))
	}
	return res
}

// Reset deletes the counter for identifier. Only ops tooling and tests call
// it; a successful request never clears its own window.
func (l *Limiter) Reset(ctx context.Context, identifier, prefix string) error {
	if l == nil || l.counter == nil {
		return nil
	}
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), l.log, "rate limit reset")
	defer cancel()
	if err := l.counter.Del(ctx, Key(prefix, identifier)); err != nil {
		return fmt.Errorf("reset %s: %w", Key(prefix, identifier), err)
	}
	return nil
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// NormalizeEmail is the identifier form used for per-email policies.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LoginLimiter checks both the per-address and per-email login policies.
type LoginLimiter struct {
	*Limiter
}

// CheckLogin counts one sign-in attempt. The per-address policy is checked
// first; the per-email policy only when an email was supplied.
func (ll LoginLimiter) CheckLogin(r *http.Request, email string) Result {
	res := ll.Check(r.Context(), ClientIP(r), LoginIP)
	if !res.Success {
		return res
	}
	if e := NormalizeEmail(email); e != "" {
		return ll.Check(r.Context(), e, Login)
	}
	return res
}
