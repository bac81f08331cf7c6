package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"vigil/internal/hygiene"
	"vigil/internal/ledger"
	"vigil/internal/principal"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

// AdminHandler serves the operator surface: bulk hygiene actions, expired-set
// reports, and per-principal audit history.
type AdminHandler struct {
	service *hygiene.Service
	logger  *slog.Logger
}

func NewAdminHandler(service *hygiene.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

// selectionRequest names the principals a bulk action targets: an explicit ID
// list, or a predicate query, never both.
type selectionRequest struct {
	Kind  string        `json:"kind"`
	IDs   []string      `json:"ids"`
	Query *queryRequest `json:"query"`
}

type queryRequest struct {
	Unverified     bool       `json:"unverified"`
	VerifiedBefore *time.Time `json:"verified_before"`
	EmailDomain    string     `json:"email_domain"`
}

type bulkRequest struct {
	selectionRequest
	Reason string `json:"reason"`
}

func (req *selectionRequest) toSelection() (hygiene.Selection, error) {
	if len(req.IDs) > 0 && req.Query != nil {
		return hygiene.Selection{}, dErrors.New(dErrors.CodeBadRequest, "ids and query are mutually exclusive")
	}

	kind := id.PrincipalKind(req.Kind)

	if len(req.IDs) > 0 {
		pids := make([]id.PrincipalID, 0, len(req.IDs))
		for _, raw := range req.IDs {
			pid, err := id.ParsePrincipalID(raw)
			if err != nil {
				return hygiene.Selection{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid principal id")
			}
			pids = append(pids, pid)
		}
		return hygiene.SelectByIDs(kind, pids...), nil
	}

	if req.Query == nil {
		return hygiene.Selection{}, dErrors.New(dErrors.CodeBadRequest, "ids or query is required")
	}
	if req.Query.EmailDomain != "" && !govalidator.IsDNSName(req.Query.EmailDomain) {
		return hygiene.Selection{}, dErrors.New(dErrors.CodeBadRequest, "invalid email_domain")
	}
	return hygiene.SelectMatching(kind, principal.Query{
		Unverified:     req.Query.Unverified,
		VerifiedBefore: req.Query.VerifiedBefore,
		EmailDomain:    req.Query.EmailDomain,
	}), nil
}

// trigger attributes the action to the authenticated operator when there is
// one, and to the system otherwise.
func trigger(r *http.Request) ledger.Trigger {
	pid := requestcontext.PrincipalID(r.Context())
	if pid.IsNil() {
		return ledger.SystemTrigger()
	}
	return ledger.PrincipalTrigger(requestcontext.PrincipalKind(r.Context()), pid)
}

func (h *AdminHandler) handleReverification(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	sel, err := req.toSelection()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.RequestReverification(r.Context(), sel, req.Reason, trigger(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(result))
}

func (h *AdminHandler) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	sel, err := req.toSelection()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.RequestPasswordChange(r.Context(), sel, req.Reason, trigger(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(result))
}

func (h *AdminHandler) handleExpiredVerification(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.ExpiredVerification(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"principals": toPrincipalResponses(principals)})
}

func (h *AdminHandler) handleExpiredPasswords(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.ExpiredPasswords(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"principals": toPrincipalResponses(principals)})
}

func (h *AdminHandler) handleRequiringAction(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.RequiringAction(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"principals": toPrincipalResponses(principals)})
}

func (h *AdminHandler) handleAudits(w http.ResponseWriter, r *http.Request) {
	kind, pid, filter, err := auditQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.service.AuditHistory(r.Context(), kind, pid, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": toRecordResponses(records)})
}

func (h *AdminHandler) handleTriggered(w http.ResponseWriter, r *http.Request) {
	kind, pid, filter, err := auditQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.service.TriggeredHistory(r.Context(), kind, pid, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": toRecordResponses(records)})
}

// auditQuery parses the audit-history route: the principal ID from the path
// and the optional filter from query parameters.
func auditQuery(r *http.Request) (id.PrincipalKind, id.PrincipalID, ledger.Filter, error) {
	pid, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		return "", id.NilPrincipalID, ledger.Filter{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid principal id")
	}
	kind := id.PrincipalKind(r.URL.Query().Get("kind"))

	var filter ledger.Filter
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return "", id.NilPrincipalID, ledger.Filter{}, dErrors.New(dErrors.CodeBadRequest, "days must be a positive integer")
		}
		filter = ledger.Recent(days, requestcontext.Now(r.Context()))
	}
	filter.PasswordChanges = r.URL.Query().Get("password_changes") == "true"
	filter.Verifications = r.URL.Query().Get("verifications") == "true"

	return kind, pid, filter, nil
}
