package admin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireToken(t *testing.T) {
	guard := RequireToken("s3cret", slog.New(slog.DiscardHandler))
	next := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(token string, set bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/reverification", nil)
		if set {
			req.Header.Set(TokenHeader, token)
		}
		rr := httptest.NewRecorder()
		next.ServeHTTP(rr, req)
		return rr
	}

	t.Run("matching token passes through", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, do("s3cret", true).Code)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		rr := do("", false)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"unauthorized","message":"admin token required"}`, rr.Body.String())
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("guess", true).Code)
	})
}
