package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credify/internal/issuer/models"
	id "credify/pkg/domain"
	"credify/pkg/platform/httputil"
	"credify/pkg/requestcontext"
)

// Service defines the issuer operations exposed over HTTP.
type Service interface {
	CreateIssuer(ctx context.Context, name string) (*models.Issuer, string, error)
	ListIssuers(ctx context.Context) ([]*models.Issuer, error)
	GetPublicKey(ctx context.Context, issuerID id.IssuerID) (string, error)
}

// Handler wires issuer endpoints to the issuer service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public, unauthenticated endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/issuers", h.HandleList)
	r.Get("/issuers/{issuerID}/public-key", h.HandleGetPublicKey)
}

// RegisterAdmin mounts operator endpoints; the caller applies the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/issuers", h.HandleCreate)
}

// HandleCreate handles POST /admin/issuers.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateIssuerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	issuer, publicPEM, err := h.service.CreateIssuer(ctx, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create issuer",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, CreateIssuerResponse{
		IssuerID:  issuer.ID.String(),
		Name:      issuer.Name,
		PublicKey: publicPEM,
	})
}

// HandleList handles GET /issuers.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuers, err := h.service.ListIssuers(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list issuers",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ListIssuersResponse{Issuers: make([]IssuerSummary, 0, len(issuers))}
	for _, issuer := range issuers {
		resp.Issuers = append(resp.Issuers, IssuerSummary{IssuerID: issuer.ID.String(), Name: issuer.Name})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetPublicKey handles GET /issuers/{issuerID}/public-key.
func (h *Handler) HandleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	publicPEM, err := h.service.GetPublicKey(ctx, issuerID)
	if err != nil {
		h.logger.WarnContext(ctx, "public key lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"issuer_id", issuerID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PublicKeyResponse{
		IssuerID:  issuerID.String(),
		PublicKey: publicPEM,
	})
}
