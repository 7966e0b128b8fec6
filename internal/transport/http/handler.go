package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routeaudit/internal/auth"
	"routeaudit/internal/inspection"
	"routeaudit/internal/platform/middleware"
	"routeaudit/internal/refdata"
)

// Handler wires HTTP endpoints to the auth, reference data, and inspection
// services.
type Handler struct {
	auth      *auth.Service
	reference *refdata.Service
	sessions  *inspection.Manager
	logger    *slog.Logger
}

// New creates the HTTP handler.
func New(authService *auth.Service, reference *refdata.Service, sessions *inspection.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		auth:      authService,
		reference: reference,
		sessions:  sessions,
		logger:    logger,
	}
}

// NewRouter builds the full route tree.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.auth, h.logger))

		r.Post("/auth/admin", h.handleElevate)

		r.Get("/reference/sections", h.handleListSections)
		r.Get("/reference/{category}", h.handleListCategory)

		r.Post("/audits", h.handleStart)
		r.Post("/audits/resume", h.handleResume)
		r.Get("/audits/active", h.handleListActive)
		r.Get("/audits/history", h.handleHistory)
		r.Get("/audits/current", h.handleCurrent)
		r.Post("/audits/current/sections", h.handleSubmitSection)
		r.Post("/audits/current/finalize", h.handleFinalize)
		r.Get("/audits/current/report", h.handleDownloadReport)
		r.Post("/audits/current/acknowledge", h.handleAcknowledge)
		r.Post("/audits/current/abandon", h.handleAbandon)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/admin/reference/{category}", h.handleAddReference)
			r.Post("/admin/reference/{category}/remove", h.handleRemoveReference)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// workflow resolves the session's workflow controller from the validated
// claims set by RequireSession.
func (h *Handler) workflow(r *http.Request) (*inspection.Workflow, error) {
	claims := middleware.GetSession(r.Context())
	sessionID := ""
	if claims != nil {
		sessionID = claims.SessionID
	}
	return h.sessions.Workflow(sessionID)
}
