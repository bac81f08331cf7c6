// Package auth provides bearer-token authentication middleware. It validates
// the JWT issued by the surrounding identity system and places the principal's
// kind and ID in the request context. Vigil never issues tokens itself; login
// and session management live outside this service.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

// Claims are the JWT claims vigil consumes. The subject is the principal's
// UUID; kind selects the principal registry entry.
type Claims struct {
	PrincipalKind string `json:"kind"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens and extracts the principal identity.
type Validator struct {
	signingKey  []byte
	defaultKind id.PrincipalKind
}

func NewValidator(signingKey string, defaultKind id.PrincipalKind) *Validator {
	return &Validator{signingKey: []byte(signingKey), defaultKind: defaultKind}
}

// Validate parses and verifies a token, returning the principal kind and ID.
func (v *Validator) Validate(tokenString string) (id.PrincipalKind, id.PrincipalID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", id.PrincipalID{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return "", id.PrincipalID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", id.PrincipalID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	pid, err := id.ParsePrincipalID(claims.Subject)
	if err != nil {
		return "", id.PrincipalID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid subject claim")
	}
	kind := id.PrincipalKind(claims.PrincipalKind)
	if kind == "" {
		kind = v.defaultKind
	}
	return kind, pid, nil
}

// Authenticate populates the principal context when a valid bearer token is
// present. Requests without an Authorization header proceed unauthenticated;
// the enforcement gate treats those as out of scope. A present-but-invalid
// token is rejected with 401 so a stale credential cannot masquerade as
// anonymous traffic.
func Authenticate(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			kind, pid, err := validator.Validate(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
				return
			}

			ctx := requestcontext.WithPrincipal(r.Context(), kind, pid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
