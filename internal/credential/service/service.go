package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	credmetrics "credify/internal/credential/metrics"
	"credify/internal/credential/models"
	"credify/internal/credential/token"
	"credify/internal/qr"
	id "credify/pkg/domain"
	dErrors "credify/pkg/domain-errors"
	"credify/pkg/email"
	audit "credify/pkg/platform/audit"
	"credify/pkg/platform/sentinel"
	"credify/pkg/requestcontext"
)

var tracer = otel.Tracer("credify/credential")

const defaultDispatchConcurrency = 4

// KeyProvider hands out an issuer's decrypted signing key for one call.
type KeyProvider interface {
	SigningKey(ctx context.Context, issuerID id.IssuerID) (*ecdsa.PrivateKey, error)
}

// Store is the credential ledger.
type Store interface {
	Create(ctx context.Context, c *models.Credential) error
	FindByID(ctx context.Context, issuerID id.IssuerID, credentialID id.CredentialID) (*models.Credential, error)
	ListByIssuer(ctx context.Context, issuerID id.IssuerID, emails []string) ([]*models.Credential, error)
}

// QRMailer delivers a credential QR image to its holder.
type QRMailer interface {
	SendCredentialQR(ctx context.Context, to string, png []byte) error
}

type Service struct {
	keys        KeyProvider
	store       Store
	mailer      QRMailer
	logger      *slog.Logger
	audit       audit.Emitter
	metrics     *credmetrics.Metrics
	qrOptions   qr.Options
	concurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditEmitter(emitter audit.Emitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func WithMetrics(m *credmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMailer enables QR dispatch. Without it dispatch is unavailable.
func WithMailer(m QRMailer) Option {
	return func(s *Service) { s.mailer = m }
}

func WithQROptions(o qr.Options) Option {
	return func(s *Service) { s.qrOptions = o }
}

// WithDispatchConcurrency bounds concurrent sends in a bulk dispatch.
func WithDispatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(keys KeyProvider, store Store, opts ...Option) (*Service, error) {
	if keys == nil || store == nil {
		return nil, errors.New("key provider and credential store are required")
	}
	s := &Service{
		keys:        keys,
		store:       store,
		logger:      slog.Default(),
		concurrency: defaultDispatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs claims for the issuer. It records nothing, so issuing the same
// claims twice yields two independent tokens.
func (s *Service) Issue(ctx context.Context, issuerID id.IssuerID, claims token.Claims) (*models.Issued, error) {
	ctx, span := tracer.Start(ctx, "credential.issue",
		trace.WithAttributes(attribute.String("issuer.id", issuerID.String())))
	defer span.End()

	issued, err := s.sign(ctx, issuerID, claims)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		return nil, err
	}
	s.emit(ctx, audit.EventCredentialIssued, issuerID, issuerID.String(), "")
	return issued, nil
}

// Enroll issues a credential to the holder named by the email claim and
// records it in the ledger. A holder may enroll once per issuer.
func (s *Service) Enroll(ctx context.Context, issuerID id.IssuerID, claims token.Claims) (*models.Credential, error) {
	ctx, span := tracer.Start(ctx, "credential.enroll",
		trace.WithAttributes(attribute.String("issuer.id", issuerID.String())))
	defer span.End()

	if err := models.ValidateClaims(claims); err != nil {
		s.reject(ctx, issuerID, "invalid_claims")
		return nil, err
	}
	claims = maps.Clone(claims)
	holder, err := models.HolderEmail(claims)
	if err != nil {
		s.reject(ctx, issuerID, "invalid_email")
		return nil, err
	}

	issued, err := s.sign(ctx, issuerID, claims)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign failed")
		return nil, err
	}

	cred := &models.Credential{
		ID:          id.NewCredentialID(),
		IssuerID:    issuerID,
		HolderEmail: holder,
		Token:       issued.Token,
		IssuedAt:    issued.IssuedAt,
	}
	if err := s.store.Create(ctx, cred); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.reject(ctx, issuerID, "duplicate_holder")
			return nil, dErrors.New(dErrors.CodeConflict, "holder already has a credential from this issuer")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger write failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record credential")
	}

	span.SetAttributes(attribute.String("credential.id", cred.ID.String()))
	s.logger.InfoContext(ctx, "credential enrolled",
		"issuer_id", issuerID.String(),
		"credential_id", cred.ID.String(),
		"holder", email.Mask(holder),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventCredentialIssued, issuerID, cred.ID.String(), "")
	return cred, nil
}

func (s *Service) sign(ctx context.Context, issuerID id.IssuerID, claims token.Claims) (*models.Issued, error) {
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer ID is required")
	}
	if err := models.ValidateClaims(claims); err != nil {
		s.reject(ctx, issuerID, "invalid_claims")
		return nil, err
	}

	start := time.Now()
	key, err := s.keys.SigningKey(ctx, issuerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.reject(ctx, issuerID, "unknown_issuer")
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	signed, err := token.Sign(claims, issuerID.String(), now, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "credential signing failed",
			"issuer_id", issuerID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign credential")
	}

	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
		s.metrics.SignSeconds.Observe(time.Since(start).Seconds())
	}
	return &models.Issued{IssuerID: issuerID, Token: signed, IssuedAt: now}, nil
}

// QRCode renders a recorded credential as a PNG.
func (s *Service) QRCode(ctx context.Context, issuerID id.IssuerID, credentialID id.CredentialID) ([]byte, error) {
	cred, err := s.find(ctx, issuerID, credentialID)
	if err != nil {
		return nil, err
	}
	png, err := qr.Encode(cred.Token, s.qrOptions)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render credential QR")
	}
	return png, nil
}

// SendQR emails one recorded credential to its holder.
func (s *Service) SendQR(ctx context.Context, issuerID id.IssuerID, credentialID id.CredentialID) error {
	if s.mailer == nil {
		return dErrors.New(dErrors.CodeUnavailable, "email delivery is not configured")
	}
	cred, err := s.find(ctx, issuerID, credentialID)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, cred); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to send credential QR")
	}
	return nil
}

// DispatchQR emails credential QR codes to every holder of the issuer, or to
// the listed holders only. Individual failures are reported, not fatal.
func (s *Service) DispatchQR(ctx context.Context, issuerID id.IssuerID, emails []string) (*models.DispatchResult, error) {
	ctx, span := tracer.Start(ctx, "credential.dispatch_qr",
		trace.WithAttributes(attribute.String("issuer.id", issuerID.String())))
	defer span.End()

	if s.mailer == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "email delivery is not configured")
	}
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer ID is required")
	}

	wanted := email.NormalizeList(emails)
	creds, err := s.store.ListByIssuer(ctx, issuerID, wanted)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load credentials")
	}
	if len(creds) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no credentials recorded for the requested holders")
	}

	result := &models.DispatchResult{Failed: []string{}}
	var mu sync.Mutex

	// Requested holders with no ledger entry count as failures.
	found := make(map[string]struct{}, len(creds))
	for _, c := range creds {
		found[c.HolderEmail] = struct{}{}
	}
	for _, addr := range wanted {
		if _, ok := found[addr]; !ok {
			result.Failed = append(result.Failed, addr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, cred := range creds {
		g.Go(func() error {
			err := s.deliver(gctx, cred)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, cred.HolderEmail)
				s.logger.WarnContext(ctx, "credential QR delivery failed",
					"issuer_id", issuerID.String(),
					"holder", email.Mask(cred.HolderEmail),
					"error", err,
				)
				return nil
			}
			result.Sent++
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(result.Failed)

	if s.metrics != nil {
		s.metrics.DispatchBatchSize.Observe(float64(len(creds)))
	}
	span.SetAttributes(
		attribute.Int("dispatch.sent", result.Sent),
		attribute.Int("dispatch.failed", len(result.Failed)),
	)
	s.logger.InfoContext(ctx, "credential QR dispatch finished",
		"issuer_id", issuerID.String(),
		"sent", result.Sent,
		"failed", len(result.Failed),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

func (s *Service) deliver(ctx context.Context, cred *models.Credential) error {
	png, err := qr.Encode(cred.Token, s.qrOptions)
	if err == nil {
		err = s.mailer.SendCredentialQR(ctx, cred.HolderEmail, png)
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.QRDispatchFailures.Inc()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.QRDispatched.Inc()
	}
	s.emit(ctx, audit.EventQRDispatched, cred.IssuerID, cred.ID.String(), "")
	return nil
}

func (s *Service) find(ctx context.Context, issuerID id.IssuerID, credentialID id.CredentialID) (*models.Credential, error) {
	if issuerID.IsNil() || credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer ID and credential ID are required")
	}
	cred, err := s.store.FindByID(ctx, issuerID, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load credential")
	}
	return cred, nil
}

func (s *Service) reject(ctx context.Context, issuerID id.IssuerID, reason string) {
	if s.metrics != nil {
		s.metrics.IssuanceRejected.WithLabelValues(reason).Inc()
	}
	s.emit(ctx, audit.EventCredentialRejected, issuerID, issuerID.String(), reason)
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, issuerID id.IssuerID, subject, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:    string(action),
		Timestamp: requestcontext.Now(ctx),
		Subject:   subject,
		IssuerID:  issuerID.String(),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}
