// Package admin guards the operator surface with a shared-secret token.
// Principal authentication identifies who a caller is; this check decides
// whether they may operate on other principals at all.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"vigil/pkg/requestcontext"
)

// TokenHeader carries the operator token on admin requests.
const TokenHeader = "X-Admin-Token"

// RequireToken rejects requests whose token header does not match
// expectedToken. Comparison is constant-time.
func RequireToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
