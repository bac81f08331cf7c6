package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// flashCookie carries deny messages across the redirect to the notice page.
// It is one-shot: ConsumeFlash expires it on read.
const flashCookie = "vigil_messages"

// SetFlash stores the messages in a session cookie, base64-encoded so the
// value survives cookie character restrictions.
func SetFlash(w http.ResponseWriter, messages []string) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.URLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ConsumeFlash returns the stored messages, if any, and expires the cookie.
func ConsumeFlash(w http.ResponseWriter, r *http.Request) []string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	payload, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var messages []string
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil
	}
	return messages
}
