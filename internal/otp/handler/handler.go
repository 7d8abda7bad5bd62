package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credify/internal/otp/models"
	dErrors "credify/pkg/domain-errors"
	"credify/pkg/platform/httputil"
	"credify/pkg/requestcontext"
)

// Service defines the OTP operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

type Handler struct {
	service      Service
	logger       *slog.Logger
	sendLimits   []func(http.Handler) http.Handler
	verifyLimits []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSendLimits wraps POST /otp/send in the given middleware.
func WithSendLimits(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.sendLimits = append(h.sendLimits, mw...) }
}

// WithVerifyLimits wraps POST /otp/verify in the given middleware.
func WithVerifyLimits(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.verifyLimits = append(h.verifyLimits, mw...) }
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.With(h.sendLimits...).Post("/otp/send", h.HandleSend)
	r.With(h.verifyLimits...).Post("/otp/verify", h.HandleVerify)
}

// HandleSend handles POST /otp/send.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Issue(ctx, req.Email); err != nil {
		h.logger.WarnContext(ctx, "otp send failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SendResponse{Sent: true, Message: "OTP sent successfully"})
}

// HandleVerify handles POST /otp/verify. Rejections use the verify response
// shape so clients can show the remaining attempts.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.Verify(ctx, req.Email, req.Code)
	if err == nil {
		httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Verified: true, Message: "OTP verified successfully"})
		return
	}

	de, ok := dErrors.As(err)
	if !ok {
		httputil.WriteError(w, err)
		return
	}
	switch de.Code {
	case dErrors.CodeInvalidCode, dErrors.CodeExpired, dErrors.CodeTooManyAttempts, dErrors.CodeValidation:
		resp := VerifyResponse{Verified: false, Message: de.Message, Error: string(de.Code)}
		var invalid *models.InvalidCodeError
		if errors.As(err, &invalid) {
			remaining := invalid.Remaining
			resp.RemainingAttempts = &remaining
		}
		httputil.WriteJSON(w, http.StatusBadRequest, resp)
	default:
		h.logger.ErrorContext(ctx, "otp verify failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
	}
}
