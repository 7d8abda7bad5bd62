package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"credify/pkg/platform/httputil"
)

// Check pings one backing dependency.
type Check func(ctx context.Context) error

// Health runs every registered check concurrently and reports 503 when any fails.
type Health struct {
	checks  map[string]Check
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealth(logger *slog.Logger) *Health {
	return &Health{checks: make(map[string]Check), timeout: 2 * time.Second, logger: logger}
}

// Add registers a check. Not safe to call after the server starts.
func (h *Health) Add(name string, check Check) {
	h.checks[name] = check
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = h.checks[name](ctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for i, name := range names {
		if results[i] != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", results[i])
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}
	httputil.WriteJSON(w, status, resp)
}
