// Package httptransport is the thin HTTP layer. Handlers delegate to the
// hygiene service without embedding business logic so transport concerns
// remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"vigil/internal/hygiene"
	"vigil/internal/hygiene/middleware"
	"vigil/internal/ledger"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

// Handler serves the self-service routes: the notice page and the
// verification and password recovery flows a denied principal is redirected
// through.
type Handler struct {
	service *hygiene.Service
	logger  *slog.Logger
}

func NewHandler(service *hygiene.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// caller extracts the authenticated principal from the request context.
func caller(r *http.Request) (id.PrincipalKind, id.PrincipalID, error) {
	pid := requestcontext.PrincipalID(r.Context())
	if pid.IsNil() {
		return "", id.NilPrincipalID, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return requestcontext.PrincipalKind(r.Context()), pid, nil
}

// handleNotice surfaces the deny messages stored by the enforcement gate on
// the preceding redirect. The flash is one-shot, so a refresh shows none.
func (h *Handler) handleNotice(w http.ResponseWriter, r *http.Request) {
	messages := middleware.ConsumeFlash(w, r)
	if len(messages) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "No action required",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Verification required",
		"details": messages,
	})
}

// handleVerify marks the caller's email verified and appends the audit
// record for the completion.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	kind, pid, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.VerificationCompleted(r.Context(), kind, pid, ledger.SelfTrigger())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(record))
}

// handleSend re-sends the verification notification to the caller.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	kind, pid, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ResendVerification(r.Context(), kind, pid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Verification notification sent",
	})
}

// handlePasswordRequest issues a reset token and sends the reset
// notification to the caller.
func (h *Handler) handlePasswordRequest(w http.ResponseWriter, r *http.Request) {
	kind, pid, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.RequestReset(r.Context(), kind, pid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Password reset notification sent",
	})
}

// handlePasswordReset is the landing route for the emailed reset link. The
// credential change itself is submitted to the update route.
func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Submit the new password to the password update route",
	})
}

// handlePasswordUpdate records the caller's completed password change in the
// ledger. The credential write itself belongs to the surrounding identity
// system.
func (h *Handler) handlePasswordUpdate(w http.ResponseWriter, r *http.Request) {
	kind, pid, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.PasswordResetCompleted(r.Context(), kind, pid, ledger.SelfTrigger())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(record))
}

// handleLogout exists so session teardown stays reachable under enforcement.
// Session state is out of scope here.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
