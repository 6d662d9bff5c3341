package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/librarium/librarium/internal/observability"
)

// Mounter is any handler that attaches its routes to a chi router.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams aggregates every handler the HTTP server exposes.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	CatalogHandler      Mounter
	ProfilesHandler     Mounter
	LoansHandler        Mounter
	NotificationHandler Mounter
	LabelsHandler       Mounter
	CSVHandler          Mounter
	ConfigHandler       Mounter
	BackupHandler       Mounter
	JobHandler          Mounter
}

// NewRouter assembles the middleware stack and mounts every module under
// /api/v1.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		mount := func(pattern string, h Mounter) {
			if h == nil {
				return
			}
			api.Route(pattern, h.MountRoutes)
		}
		if p.CatalogHandler != nil {
			api.Group(p.CatalogHandler.MountRoutes)
		}
		if p.ProfilesHandler != nil {
			api.Group(p.ProfilesHandler.MountRoutes)
		}
		mount("/loans", p.LoansHandler)
		mount("/notifications", p.NotificationHandler)
		mount("/labels", p.LabelsHandler)
		mount("/csv", p.CSVHandler)
		mount("/configuration", p.ConfigHandler)
		mount("/backups", p.BackupHandler)
		mount("/jobs", p.JobHandler)
	})

	return r
}
