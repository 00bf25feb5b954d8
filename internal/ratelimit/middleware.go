package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"tridcheck/pkg/platform/audit"
	"tridcheck/pkg/platform/httputil"
	"tridcheck/pkg/requestcontext"
)

// SecurityPublisher receives rate-limit rejection events. Satisfied by the
// security audit publisher; emission is fire-and-forget.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// Middleware enforces per-class budgets on chi routes.
type Middleware struct {
	store    Store
	limits   Limits
	logger   *slog.Logger
	security SecurityPublisher
	metrics  *Metrics
	disabled bool
}

// Option configures the middleware.
type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithSecurityPublisher routes rejection events to the security audit trail.
func WithSecurityPublisher(p SecurityPublisher) Option {
	return func(m *Middleware) {
		m.security = p
	}
}

// WithMetrics attaches decision metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// New constructs the rate limit middleware.
func New(store Store, limits Limits, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limits: limits,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.disabled {
		m.logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns middleware enforcing the budget for one endpoint class.
func (m *Middleware) Limit(class EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = "unknown"
			}

			limit := m.limits.ForClass(class)
			result, err := m.store.Allow(ctx, Key(class, ip), limit, m.limits.Window)
			if err != nil {
				// Fail open: a broken limiter must not block compliance checks.
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"error", err,
					"class", class,
					"request_id", requestcontext.RequestID(ctx),
				)
				m.metrics.IncrementDecision(class, "error")
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.metrics.IncrementDecision(class, "rejected")
				m.auditRejection(ctx, class, ip)
				writeRateLimitExceeded(w, result)
				return
			}

			m.metrics.IncrementDecision(class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

// auditRejection records the rejection on the security trail and in the log.
// The event is stamped with the request entry time so forensic timelines line
// up with the HTTP access log rather than the buffer flush.
func (m *Middleware) auditRejection(ctx context.Context, class EndpointClass, ip string) {
	requestID := requestcontext.RequestID(ctx)

	m.logger.WarnContext(ctx, "rate limit exceeded",
		"class", class,
		"ip", ip,
		"user_agent", requestcontext.UserAgent(ctx),
		"request_id", requestID,
		"log_type", "audit",
	)

	if m.security == nil {
		return
	}
	m.security.Emit(ctx, audit.SecurityEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   ip,
		Action:    string(audit.EventRateLimitExceeded),
		Reason:    "endpoint class " + string(class),
		IP:        ip,
		RequestID: requestID,
		Severity:  audit.SeverityWarning,
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// rateLimitExceededResponse is the wire shape for 429 responses.
type rateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

func writeRateLimitExceeded(w http.ResponseWriter, result *Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &rateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
