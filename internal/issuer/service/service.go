package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"credify/internal/issuer/keys"
	issuermetrics "credify/internal/issuer/metrics"
	"credify/internal/issuer/models"
	id "credify/pkg/domain"
	dErrors "credify/pkg/domain-errors"
	audit "credify/pkg/platform/audit"
	"credify/pkg/platform/sentinel"
	txcontext "credify/pkg/platform/tx"
	"credify/pkg/requestcontext"
)

var tracer = otel.Tracer("credify/issuer")

// Store persists issuers and their keypairs.
type Store interface {
	CreateIssuer(ctx context.Context, issuer *models.Issuer) error
	FindIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	ListIssuers(ctx context.Context) ([]*models.Issuer, error)
	SaveKeypair(ctx context.Context, kp *models.Keypair) error
	FindKeypair(ctx context.Context, issuerID id.IssuerID) (*models.Keypair, error)
}

// Service owns issuer creation and key custody. It is the only code path
// that ever holds a decrypted private key.
type Service struct {
	store     Store
	tx        txcontext.Runner
	masterKey keys.MasterKey
	logger    *slog.Logger
	audit     audit.Emitter
	metrics   *issuermetrics.Metrics
	generate  func() (string, string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditEmitter(emitter audit.Emitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func WithMetrics(m *issuermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithKeyGenerator replaces GenerateKeypair; tests use it to inject failures.
func WithKeyGenerator(fn func() (string, string, error)) Option {
	return func(s *Service) { s.generate = fn }
}

// New constructs a Service. The master key must already be validated;
// a zero key is rejected here so misconfiguration cannot reach a request.
func New(store Store, tx txcontext.Runner, masterKey keys.MasterKey, opts ...Option) (*Service, error) {
	if store == nil || tx == nil {
		return nil, errors.New("issuer store and tx runner are required")
	}
	if masterKey.IsZero() {
		return nil, keys.ErrInvalidMasterKey
	}
	s := &Service{
		store:     store,
		tx:        tx,
		masterKey: masterKey,
		logger:    slog.Default(),
		generate:  keys.GenerateKeypair,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateIssuer registers an issuer and its keypair in one transaction.
func (s *Service) CreateIssuer(ctx context.Context, name string) (*models.Issuer, string, error) {
	ctx, span := tracer.Start(ctx, "issuer.create")
	defer span.End()
	start := time.Now()

	now := requestcontext.Now(ctx)
	issuer, err := models.NewIssuer(name, now)
	if err != nil {
		return nil, "", err
	}

	publicPEM, privatePEM, err := s.generate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "key generation failed")
		s.logger.ErrorContext(ctx, "issuer key generation failed", "error", err)
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate issuer keypair")
	}
	ciphertext, iv, err := keys.EncryptPrivateKey(privatePEM, s.masterKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "key encryption failed")
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to protect issuer keypair")
	}

	kp := &models.Keypair{
		IssuerID:             issuer.ID,
		PublicKeyPEM:         publicPEM,
		PrivateKeyCiphertext: ciphertext,
		PrivateKeyIV:         iv,
		Algorithm:            keys.Algorithm,
		Status:               models.KeyStatusActive,
		CreatedAt:            now,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateIssuer(txCtx, issuer); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "issuer name must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create issuer")
		}
		if err := s.store.SaveKeypair(txCtx, kp); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store issuer keypair")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, "", err
	}

	span.SetAttributes(attribute.String("issuer.id", issuer.ID.String()))
	s.logger.InfoContext(ctx, "issuer created",
		"issuer_id", issuer.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventIssuerCreated, issuer.ID, "")
	if s.metrics != nil {
		s.metrics.IssuersCreated.Inc()
		s.metrics.CreateIssuerSeconds.Observe(time.Since(start).Seconds())
	}
	return issuer, publicPEM, nil
}

// ListIssuers returns every issuer, ordered by name.
func (s *Service) ListIssuers(ctx context.Context) ([]*models.Issuer, error) {
	issuers, err := s.store.ListIssuers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list issuers")
	}
	return issuers, nil
}

// GetPublicKey returns the SPKI PEM of the issuer's active key.
func (s *Service) GetPublicKey(ctx context.Context, issuerID id.IssuerID) (string, error) {
	kp, err := s.findKeypair(ctx, issuerID)
	if err != nil {
		return "", err
	}
	return kp.PublicKeyPEM, nil
}

// SigningKey decrypts the issuer's private key for a single signing call.
// Decryption failures are logged with detail and returned as a generic
// internal error.
func (s *Service) SigningKey(ctx context.Context, issuerID id.IssuerID) (*ecdsa.PrivateKey, error) {
	kp, err := s.findKeypair(ctx, issuerID)
	if err != nil {
		return nil, err
	}

	privatePEM, err := keys.DecryptPrivateKey(kp.PrivateKeyCiphertext, kp.PrivateKeyIV, s.masterKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "issuer private key decryption failed",
			"issuer_id", issuerID.String(),
			"algorithm", kp.Algorithm,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.KeyDecryptFailures.Inc()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "signing key unavailable")
	}

	priv, err := jwt.ParseECPrivateKeyFromPEM([]byte(privatePEM))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "signing key unavailable")
	}
	return priv, nil
}

func (s *Service) findKeypair(ctx context.Context, issuerID id.IssuerID) (*models.Keypair, error) {
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer ID is required")
	}
	kp, err := s.store.FindKeypair(ctx, issuerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "issuer has no keypair")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load issuer keypair")
	}
	return kp, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, issuerID id.IssuerID, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:    string(action),
		Timestamp: requestcontext.Now(ctx),
		Subject:   issuerID.String(),
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
