package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"credify/internal/credential/models"
	"credify/internal/credential/token"
	id "credify/pkg/domain"
	"credify/pkg/platform/httputil"
	"credify/pkg/requestcontext"
)

// Service defines the credential operations exposed to operators.
type Service interface {
	Enroll(ctx context.Context, issuerID id.IssuerID, claims token.Claims) (*models.Credential, error)
	QRCode(ctx context.Context, issuerID id.IssuerID, credentialID id.CredentialID) ([]byte, error)
	SendQR(ctx context.Context, issuerID id.IssuerID, credentialID id.CredentialID) error
	DispatchQR(ctx context.Context, issuerID id.IssuerID, emails []string) (*models.DispatchResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the issuance endpoints under the admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/issuers/{issuerID}/credentials", func(r chi.Router) {
		r.Post("/", h.HandleIssue)
		r.Post("/dispatch", h.HandleDispatch)
		r.Get("/{credentialID}/qr", h.HandleQR)
		r.Post("/{credentialID}/send", h.HandleSend)
	})
}

// HandleIssue handles POST /admin/issuers/{issuerID}/credentials.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[IssueCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cred, err := h.service.Enroll(ctx, issuerID, token.Claims(req.Claims))
	if err != nil {
		h.logger.WarnContext(ctx, "credential issuance failed",
			"request_id", requestID,
			"issuer_id", issuerID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, IssueCredentialResponse{
		CredentialID: cred.ID.String(),
		IssuerID:     issuerID.String(),
		Token:        cred.Token,
		IssuedAt:     cred.IssuedAt,
	})
}

// HandleQR handles GET /admin/issuers/{issuerID}/credentials/{credentialID}/qr.
func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, credentialID, ok := parseIDs(w, r)
	if !ok {
		return
	}
	png, err := h.service.QRCode(ctx, issuerID, credentialID)
	if err != nil {
		h.logger.WarnContext(ctx, "credential QR failed",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", credentialID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleSend handles POST /admin/issuers/{issuerID}/credentials/{credentialID}/send.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, credentialID, ok := parseIDs(w, r)
	if !ok {
		return
	}
	if err := h.service.SendQR(ctx, issuerID, credentialID); err != nil {
		h.logger.WarnContext(ctx, "credential QR send failed",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", credentialID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, DispatchResponse{Sent: 1, Failed: []string{}})
}

// HandleDispatch handles POST /admin/issuers/{issuerID}/credentials/dispatch.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DispatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.DispatchQR(ctx, issuerID, req.Emails)
	if err != nil {
		h.logger.WarnContext(ctx, "credential QR dispatch failed",
			"request_id", requestID,
			"issuer_id", issuerID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, DispatchResponse{Sent: result.Sent, Failed: result.Failed})
}

func parseIDs(w http.ResponseWriter, r *http.Request) (id.IssuerID, id.CredentialID, bool) {
	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.IssuerID{}, id.CredentialID{}, false
	}
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.IssuerID{}, id.CredentialID{}, false
	}
	return issuerID, credentialID, true
}
