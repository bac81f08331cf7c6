package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashRoundTrip(t *testing.T) {
	messages := []string{"Your email verification has expired.", "Your password has expired."}

	setRecorder := httptest.NewRecorder()
	SetFlash(setRecorder, messages)
	cookies := setRecorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "vigil_messages", cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/verification/notice", nil)
	req.AddCookie(cookies[0])

	consumeRecorder := httptest.NewRecorder()
	got := ConsumeFlash(consumeRecorder, req)
	assert.Equal(t, messages, got)

	// Consuming expires the cookie so a refresh shows nothing.
	expired := consumeRecorder.Result().Cookies()
	require.Len(t, expired, 1)
	assert.Equal(t, "vigil_messages", expired[0].Name)
	assert.Negative(t, expired[0].MaxAge)
}

func TestConsumeFlashWithoutCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/verification/notice", nil)
	assert.Nil(t, ConsumeFlash(httptest.NewRecorder(), req))
}

func TestConsumeFlashGarbageValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/verification/notice", nil)
	req.AddCookie(&http.Cookie{Name: "vigil_messages", Value: "not-base64!"})
	assert.Nil(t, ConsumeFlash(httptest.NewRecorder(), req))
}
