// Package admin exposes operator views over process state.
package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "credify/pkg/domain-errors"
	audit "credify/pkg/platform/audit"
	"credify/pkg/platform/httputil"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// EventSource is the in-process audit buffer.
type EventSource interface {
	Recent(limit int) []audit.Event
	Dropped() int64
}

type Handler struct {
	events EventSource
	logger *slog.Logger
}

func New(events EventSource, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/audit/events", h.HandleListEvents)
}

// HandleListEvents returns recent audit events, newest first. The optional
// action and category query parameters filter the retained window.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	action := r.URL.Query().Get("action")
	category := r.URL.Query().Get("category")

	resp := &AuditEventsResponse{Events: []*AuditEventResponse{}, Dropped: h.events.Dropped()}
	for _, e := range h.events.Recent(0) {
		if len(resp.Events) == limit {
			break
		}
		if action != "" && e.Action != action {
			continue
		}
		if category != "" && string(e.Category) != category {
			continue
		}
		resp.Events = append(resp.Events, toResponse(e))
	}
	resp.Total = len(resp.Events)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func toResponse(e audit.Event) *AuditEventResponse {
	return &AuditEventResponse{
		ID:        e.ID,
		Action:    e.Action,
		Category:  string(e.Category),
		Subject:   e.Subject,
		IssuerID:  e.IssuerID,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ClientIP:  e.ClientIP,
		Device:    e.Device,
		Timestamp: e.Timestamp,
	}
}
