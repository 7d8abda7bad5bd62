// Package httptransport assembles the chi router. Handlers live with their
// modules; this package only mounts them behind the shared middleware.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credify/internal/platform/metrics"
	"credify/pkg/platform/middleware/admin"
	"credify/pkg/platform/middleware/metadata"
	"credify/pkg/platform/middleware/request"
	"credify/pkg/platform/middleware/requesttime"
)

// Mountable is implemented by module handlers.
type Mountable interface {
	Register(r chi.Router)
}

type AdminMountable interface {
	RegisterAdmin(r chi.Router)
}

type Deps struct {
	Logger      *slog.Logger
	AdminToken  string
	Public      []Mountable
	Admin       []AdminMountable
	Health      *Health
	HTTPMetrics *metrics.HTTP
}

// NewRouter wires public routes at the root and operator routes under
// /admin behind the admin token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if d.HTTPMetrics != nil {
		r.Use(d.HTTPMetrics.Middleware)
	}
	r.Use(middleware.Recoverer)

	for _, m := range d.Public {
		m.Register(r)
	}
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
		for _, m := range d.Admin {
			m.RegisterAdmin(ar)
		}
	})

	if d.Health != nil {
		r.Get("/health", d.Health.ServeHTTP)
	}
	r.Handle("/metrics", promhttp.Handler())
	return r
}
