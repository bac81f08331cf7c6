package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gate "vigil/internal/hygiene/middleware"
	"vigil/internal/routes"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/middleware/admin"
	"vigil/pkg/platform/middleware/auth"
	"vigil/pkg/platform/middleware/requestid"
	"vigil/pkg/platform/middleware/requesttime"
)

// NewRouter wires the full HTTP surface. Every application route passes
// through the enforcement gate under its route name; the admin surface is
// enforced unnamed, so no admin route can ever be exempt, and requires the
// operator token on every request.
func NewRouter(h *Handler, adminHandler *AdminHandler, g *gate.Gate, validator *auth.Validator, adminToken string, logger *slog.Logger) (http.Handler, error) {
	if adminToken == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "admin token is required")
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(auth.Authenticate(validator, logger))

	type route struct {
		name    string
		method  string
		handler http.HandlerFunc
	}
	named := []route{
		{routes.VerificationNotice, http.MethodGet, h.handleNotice},
		{routes.VerificationVerify, http.MethodPost, h.handleVerify},
		{routes.VerificationSend, http.MethodPost, h.handleSend},
		{routes.PasswordRequest, http.MethodPost, h.handlePasswordRequest},
		{routes.PasswordReset, http.MethodGet, h.handlePasswordReset},
		{routes.PasswordUpdate, http.MethodPost, h.handlePasswordUpdate},
		{routes.Logout, http.MethodPost, h.handleLogout},
	}
	for _, rt := range named {
		path, err := routes.PathOf(rt.name)
		if err != nil {
			return nil, err
		}
		r.With(g.Enforce(rt.name)).Method(rt.method, path, rt.handler)
	}

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(admin.RequireToken(adminToken, logger))
		ar.Use(g.Enforce(""))
		ar.Post("/reverification", adminHandler.handleReverification)
		ar.Post("/password-change", adminHandler.handlePasswordChange)
		ar.Get("/expired/verification", adminHandler.handleExpiredVerification)
		ar.Get("/expired/passwords", adminHandler.handleExpiredPasswords)
		ar.Get("/requiring-action", adminHandler.handleRequiringAction)
		ar.Get("/principals/{id}/audits", adminHandler.handleAudits)
		ar.Get("/principals/{id}/triggered", adminHandler.handleTriggered)
	})

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r, nil
}
