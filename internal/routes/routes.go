// Package routes names the HTTP routes the hygiene core needs to refer to by
// identity: the exemption set and the redirect target are configured as route
// names, not paths, so paths can move without breaking configuration.
package routes

import (
	dErrors "vigil/pkg/domain-errors"
)

const (
	VerificationNotice = "verification.notice"
	VerificationVerify = "verification.verify"
	VerificationSend   = "verification.send"
	PasswordRequest    = "password.request"
	PasswordReset      = "password.reset"
	PasswordUpdate     = "password.update"
	Logout             = "logout"
)

// paths maps a route name to the chi route pattern serving it.
var paths = map[string]string{
	VerificationNotice: "/verification/notice",
	VerificationVerify: "/verification/verify",
	VerificationSend:   "/verification/send",
	PasswordRequest:    "/password/request",
	PasswordReset:      "/password/reset",
	PasswordUpdate:     "/password/update",
	Logout:             "/logout",
}

// RequiredExemptions are the routes that must always be exempt from
// enforcement. Without them a stale principal could never reach the very
// flows that clear the staleness.
var RequiredExemptions = []string{
	VerificationNotice,
	VerificationVerify,
	VerificationSend,
	PasswordRequest,
	PasswordReset,
	PasswordUpdate,
	Logout,
}

// PathOf resolves a route name to its pattern. An unknown name is a
// configuration error, surfaced at startup rather than hidden at request time.
func PathOf(name string) (string, error) {
	path, ok := paths[name]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeConfiguration, "unknown route name %q", name)
	}
	return path, nil
}
