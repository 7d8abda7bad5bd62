// Package middleware applies sliding window limits to HTTP routes. When the
// primary store keeps failing, a circuit breaker switches checks to an
// in-memory fallback; with no fallback configured, requests fail open.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"credify/internal/ratelimit/metrics"
	"credify/internal/ratelimit/models"
	"credify/pkg/email"
	"credify/pkg/platform/circuit"
	"credify/pkg/platform/httputil"
	"credify/pkg/requestcontext"
)

const maxPeekBytes = 64 << 10

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

type Middleware struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithFallback serves checks from fallback while breaker is open.
func WithFallback(fallback Store, breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.fallback = fallback
		m.breaker = breaker
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = mt }
}

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func New(primary Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{primary: primary, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.fallback != nil && m.breaker == nil {
		m.breaker = circuit.New("ratelimit")
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// PerIP limits requests per client IP.
func (m *Middleware) PerIP(class string, limit models.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ip := requestcontext.ClientIP(r.Context())
			if !m.enforce(w, r, class, models.DimensionIP, ip, limit) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PerEmail limits requests per normalized "email" field of a JSON body. The
// body is restored for the handler. Requests without an email pass through
// and are left to handler validation.
func (m *Middleware) PerEmail(class string, limit models.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			addr := peekEmail(r)
			if addr != "" && !m.enforce(w, r, class, models.DimensionEmail, addr, limit) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// enforce writes the rate limit headers and, when the limit is hit, the 429
// response. It reports whether the request may continue.
func (m *Middleware) enforce(w http.ResponseWriter, r *http.Request, class string, dim models.Dimension, value string, limit models.Limit) bool {
	ctx := r.Context()
	result, err := m.check(ctx, models.Key(class, dim, value), limit)
	if err != nil {
		m.logger.ErrorContext(ctx, "rate limit check failed, allowing request",
			"class", class,
			"dimension", string(dim),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return true
	}

	addRateLimitHeaders(w, result)
	if result.Allowed {
		return true
	}

	if m.metrics != nil {
		m.metrics.Rejected.WithLabelValues(class, string(dim)).Inc()
	}
	logValue := value
	if dim == models.DimensionEmail {
		logValue = email.Mask(value)
	}
	m.logger.WarnContext(ctx, "rate limit exceeded",
		"class", class,
		"dimension", string(dim),
		"key", logValue,
		"request_id", requestcontext.RequestID(ctx),
	)
	writeRateLimitExceeded(w, result)
	return false
}

func (m *Middleware) check(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	result, err := m.primary.Allow(ctx, key, limit)
	if err == nil {
		if m.breaker != nil {
			if _, change := m.breaker.RecordSuccess(); change.Closed {
				m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
				m.setFallbackActive(0)
			}
		}
		return result, nil
	}

	if m.metrics != nil {
		m.metrics.StoreErrors.Inc()
	}
	if m.fallback == nil {
		return nil, err
	}
	useFallback, change := m.breaker.RecordFailure()
	if change.Opened {
		m.logger.WarnContext(ctx, "rate limit store degraded, using in-memory fallback",
			"breaker", m.breaker.Name(),
			"error", err,
		)
		m.setFallbackActive(1)
	}
	if !useFallback {
		return nil, err
	}
	return m.fallback.Allow(ctx, key, limit)
}

func (m *Middleware) setFallbackActive(v float64) {
	if m.metrics != nil {
		m.metrics.FallbackActive.Set(v)
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

func peekEmail(r *http.Request) string {
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	orig := r.Body
	body, err := io.ReadAll(io.LimitReader(orig, maxPeekBytes))
	// The handler sees the peeked prefix followed by whatever was not read.
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), orig), Closer: orig}
	if err != nil {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return email.Normalize(payload.Email)
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
