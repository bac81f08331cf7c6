package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"vigil/internal/hygiene"
	"vigil/internal/ledger"
	"vigil/internal/principal"
	dErrors "vigil/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler produces the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

type principalResponse struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Email          string     `json:"email"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
}

func toPrincipalResponse(p *principal.Principal) principalResponse {
	return principalResponse{
		ID:             p.ID.String(),
		Kind:           string(p.Kind),
		Email:          p.Email,
		LastVerifiedAt: p.LastVerifiedAt,
	}
}

func toPrincipalResponses(ps []*principal.Principal) []principalResponse {
	out := make([]principalResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPrincipalResponse(p))
	}
	return out
}

type recordResponse struct {
	ID                int64      `json:"id"`
	SubjectKind       string     `json:"subject_kind"`
	SubjectID         string     `json:"subject_id"`
	Email             string     `json:"email"`
	Kind              string     `json:"kind"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	TriggeredBy       string     `json:"triggered_by,omitempty"`
	TriggeredByKind   string     `json:"triggered_by_kind,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toRecordResponse(r *ledger.Record) recordResponse {
	resp := recordResponse{
		ID:                int64(r.ID),
		SubjectKind:       string(r.Subject.Kind),
		SubjectID:         r.Subject.ID.String(),
		Email:             r.Email,
		Kind:              r.Kind(),
		VerifiedAt:        r.VerifiedAt,
		PasswordChangedAt: r.PasswordChangedAt,
		Reason:            r.Reason,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if !r.Trigger.IsZero() {
		resp.TriggeredBy = r.Trigger.String()
	}
	if triggering, ok := r.Trigger.Principal(); ok {
		resp.TriggeredByKind = string(triggering.Kind)
	}
	return resp
}

func toRecordResponses(rs []*ledger.Record) []recordResponse {
	out := make([]recordResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRecordResponse(r))
	}
	return out
}

type batchFailureResponse struct {
	PrincipalID string `json:"principal_id"`
	Error       string `json:"error"`
}

type batchResponse struct {
	Processed []string               `json:"processed"`
	Failures  []batchFailureResponse `json:"failures,omitempty"`
}

func toBatchResponse(res *hygiene.BatchResult) batchResponse {
	out := batchResponse{Processed: make([]string, 0, len(res.Processed))}
	for _, pid := range res.Processed {
		out.Processed = append(out.Processed, pid.String())
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, batchFailureResponse{
			PrincipalID: f.PrincipalID.String(),
			Error:       f.Err.Error(),
		})
	}
	return out
}
