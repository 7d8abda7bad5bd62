package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	otpcode "credify/internal/otp/code"
	otpmetrics "credify/internal/otp/metrics"
	"credify/internal/otp/models"
	dErrors "credify/pkg/domain-errors"
	"credify/pkg/email"
	audit "credify/pkg/platform/audit"
	"credify/pkg/requestcontext"
)

var tracer = otel.Tracer("credify/otp")

// Store holds at most one pending code digest per email.
type Store interface {
	Put(ctx context.Context, email, digest string, ttl time.Duration) error
	Check(ctx context.Context, email, digest string, maxAttempts int) (models.CheckResult, error)
}

// Mailer delivers a code to its recipient.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

type Service struct {
	store       Store
	mailer      Mailer
	hasher      *otpcode.Hasher
	ttl         time.Duration
	maxAttempts int
	generate    func() (string, error)
	logger      *slog.Logger
	audit       audit.Emitter
	metrics     *otpmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditEmitter(emitter audit.Emitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func WithMetrics(m *otpmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithCodeGenerator replaces the random generator; tests use it to know the code.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.generate = fn }
}

func New(store Store, mailer Mailer, hasher *otpcode.Hasher, opts ...Option) (*Service, error) {
	if store == nil || mailer == nil || hasher == nil {
		return nil, errors.New("otp store, mailer and hasher are required")
	}
	s := &Service{
		store:       store,
		mailer:      mailer,
		hasher:      hasher,
		ttl:         models.DefaultTTL,
		maxAttempts: models.DefaultMaxAttempts,
		generate:    otpcode.Generate,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL is how long an issued code stays valid.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue generates a fresh code for addr, replacing any pending one, and
// mails it. Delivery failures are retryable.
func (s *Service) Issue(ctx context.Context, addr string) error {
	ctx, span := tracer.Start(ctx, "otp.issue")
	defer span.End()

	normalized, err := email.Parse(addr)
	if err != nil {
		return err
	}

	code, err := s.generate()
	if err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	if err := s.store.Put(ctx, normalized, s.hasher.Digest(normalized, code), s.ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		s.logger.ErrorContext(ctx, "otp store write failed", "holder", email.Mask(normalized), "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store code, try again")
	}
	if err := s.mailer.SendOTP(ctx, normalized, code, s.ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		s.logger.WarnContext(ctx, "otp delivery failed", "holder", email.Mask(normalized), "error", err)
		if s.metrics != nil {
			s.metrics.DeliveryFailures.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to send code, try again")
	}

	s.logger.InfoContext(ctx, "otp issued",
		"holder", email.Mask(normalized),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.CodesIssued.Inc()
	}
	s.emit(ctx, audit.EventOTPIssued, normalized, "")
	return nil
}

// Verify consumes one attempt against the pending code for addr. A match
// deletes the code, so each code verifies at most once.
func (s *Service) Verify(ctx context.Context, addr, code string) error {
	ctx, span := tracer.Start(ctx, "otp.verify")
	defer span.End()

	normalized, err := email.Parse(addr)
	if err != nil {
		return err
	}
	if !otpcode.Valid(code) {
		return dErrors.New(dErrors.CodeValidation, "code must be 6 digits")
	}

	res, err := s.store.Check(ctx, normalized, s.hasher.Digest(normalized, code), s.maxAttempts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "verification unavailable, try again")
	}
	span.SetAttributes(attribute.String("otp.outcome", res.Outcome.String()))
	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues(res.Outcome.String()).Inc()
	}

	switch res.Outcome {
	case models.OutcomeMatch:
		s.emit(ctx, audit.EventOTPVerified, normalized, "")
		return nil
	case models.OutcomeMismatch:
		remaining := max(s.maxAttempts-res.Attempts, 0)
		s.emit(ctx, audit.EventOTPFailed, normalized, "invalid_code")
		invalid := &models.InvalidCodeError{Remaining: remaining}
		return dErrors.Wrap(invalid, dErrors.CodeInvalidCode, invalid.Error())
	case models.OutcomeLocked:
		s.logger.WarnContext(ctx, "otp locked out", "holder", email.Mask(normalized), "attempts", res.Attempts)
		if s.metrics != nil {
			s.metrics.Lockouts.Inc()
		}
		s.emit(ctx, audit.EventOTPLockout, normalized, "too_many_attempts")
		return dErrors.Wrap(models.ErrTooManyAttempts, dErrors.CodeTooManyAttempts, "too many failed attempts, request a new code")
	default:
		s.emit(ctx, audit.EventOTPFailed, normalized, "expired")
		return dErrors.Wrap(models.ErrExpired, dErrors.CodeExpired, "code not found or expired")
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, addr, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:    string(action),
		Timestamp: requestcontext.Now(ctx),
		Subject:   email.Mask(addr),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}
