// Package requestid stamps every request with a correlation identifier, kept
// in the request context and echoed back in the X-Request-ID header.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"vigil/pkg/requestcontext"
)

const header = "X-Request-ID"

// Middleware reuses an inbound X-Request-ID when the caller supplies one and
// mints a fresh one otherwise.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
