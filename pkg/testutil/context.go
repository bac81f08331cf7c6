package testutil

import (
	"net/http"
	"time"

	id "vigil/pkg/domain"
	"vigil/pkg/requestcontext"
)

// WithPrincipal stamps the request context with an authenticated principal,
// simulating what the auth middleware does for a valid token.
func WithPrincipal(req *http.Request, kind id.PrincipalKind, pid id.PrincipalID) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), kind, pid))
}

// WithTime pins the request-scoped clock, so handlers under test observe a
// fixed instant instead of the wall clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
