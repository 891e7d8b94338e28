// Package httpapi exposes the CloudVault services over HTTP. Handlers only
// translate between requests and service calls; every decision is made in
// the services package.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/identity"
	"github.com/dmitrijs2005/cloudvault/internal/server/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles what the handlers call into.
type Services struct {
	Folders   *services.FolderService
	Files     *services.FileService
	Shares    *services.ShareService
	Analytics *services.AnalyticsService
	Users     *services.UserService
}

// HealthFunc reports whether the server's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

type handler struct {
	svc    Services
	health HealthFunc
	logger logging.Logger
}

// NewRouter builds the full route table. health may be nil.
func NewRouter(svc Services, provider identity.Provider, health HealthFunc, logger logging.Logger) http.Handler {
	logger = logger.With("module", "httpapi")
	h := &handler{svc: svc, health: health, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observe(logger))
	r.Use(recoverer(logger))

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Anonymous share-link access.
	r.Get("/s/{token}", h.openShare)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate(provider))

		r.Get("/me", h.me)

		r.Route("/folders", func(r chi.Router) {
			r.Post("/", h.createFolder)
			r.Get("/", h.listFolders)
			r.Get("/all", h.listAllFolders)
			r.Get("/{id}", h.getFolder)
			r.Delete("/{id}", h.deleteFolder)
			r.Get("/{id}/path", h.folderPath)
		})

		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.upload)
			r.Get("/", h.listFiles)
			r.Get("/{id}", h.getFile)
			r.Delete("/{id}", h.deleteFile)
			r.Get("/{id}/content", h.download)
			r.Get("/{id}/url", h.downloadURL)
			r.Post("/{id}/shares", h.createShare)
			r.Get("/{id}/shares", h.listShares)
		})

		r.Delete("/shares/{id}", h.revokeShare)

		r.Route("/analytics", func(r chi.Router) {
			r.Post("/events", h.trackEvent)
			r.Get("/events", h.queryEvents)
			r.Get("/report", h.report)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "route not found", Error: "NotFound"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Message: "method not allowed", Error: "InvalidArgument"})
	})
	return r
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, envelope{Message: "unhealthy", Error: "DependencyUnavailable"})
			return
		}
	}
	ok(w, http.StatusOK, "ok", nil)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Users.Profile(r.Context(), userID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "profile", u)
}
