package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftgate/draftgate/internal/attachments"
	"github.com/draftgate/draftgate/internal/auth"
	"github.com/draftgate/draftgate/internal/comments"
	"github.com/draftgate/draftgate/internal/notifications"
	"github.com/draftgate/draftgate/internal/observability"
	"github.com/draftgate/draftgate/internal/profiles"
	"github.com/draftgate/draftgate/internal/rbac"
	"github.com/draftgate/draftgate/internal/requests"
	"github.com/draftgate/draftgate/internal/shared"
	"github.com/draftgate/draftgate/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler          *auth.Handler
	ProfilesHandler      *profiles.Handler
	RequestsHandler      *requests.Handler
	CommentsHandler      *comments.Handler
	NotificationsHandler *notifications.Handler
	AttachmentsHandler   *attachments.Handler
	RolesHandler         *rbac.Handler
	JobHandler           *jobs.Handler

	Pool           *pgxpool.Pool
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Draftgate defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/attachments", func(r chi.Router) {
		// Signed downloads are self-authorizing and stay reachable
		// without a session.
		params.AttachmentsHandler.MountDownloadRoute(r)
		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAuth)
			params.AttachmentsHandler.MountRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuth)

		r.Route("/profiles", func(r chi.Router) {
			params.ProfilesHandler.MountRoutes(r)
		})

		r.Route("/requests", func(r chi.Router) {
			params.RequestsHandler.MountRoutes(r)
			r.Route("/{requestID}/comments", func(r chi.Router) {
				params.CommentsHandler.MountRequestRoutes(r)
			})
			r.Route("/{requestID}/attachments", func(r chi.Router) {
				params.AttachmentsHandler.MountRequestRoutes(r)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			params.CommentsHandler.MountRoutes(r)
		})

		r.Route("/notifications", func(r chi.Router) {
			params.NotificationsHandler.MountRoutes(r)
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAdmin)
			params.RolesHandler.MountRoutes(r)
		})

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAdmin)
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
