// Package middleware contains the enforcement gate: the request-time
// interceptor that decides allow or deny for authenticated principals based
// on credential staleness, and records what it found in the audit ledger.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vigil/internal/hygiene"
	"vigil/internal/platform/metrics"
	"vigil/internal/policy"
	"vigil/internal/principal"
	"vigil/internal/routes"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

// Service is the slice of the hygiene service the gate needs.
type Service interface {
	Policy() *policy.Policy
	Registry() *principal.Registry
	RecordDetection(ctx context.Context, p *principal.Principal, reason string) error
	NotifyVerification(ctx context.Context, p *principal.Principal) error
}

// Gate enforces the expiry policy per request.
type Gate struct {
	service      Service
	redirectPath string
	exempt       map[string]struct{}
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures optional gate collaborators.
type Option func(*Gate)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// New builds a Gate. The redirect route and every exempt route must be known
// route names; an unknown name is a configuration error surfaced here, at
// startup. The exemption set must cover the recovery routes or enforcement
// would lock principals into a redirect loop.
func New(service Service, redirectRoute string, exemptRoutes []string, opts ...Option) (*Gate, error) {
	if service == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "hygiene service is required")
	}
	redirectPath, err := routes.PathOf(redirectRoute)
	if err != nil {
		return nil, err
	}

	exempt := make(map[string]struct{}, len(exemptRoutes))
	for _, name := range exemptRoutes {
		if _, err := routes.PathOf(name); err != nil {
			return nil, err
		}
		exempt[name] = struct{}{}
	}
	for _, required := range routes.RequiredExemptions {
		if _, ok := exempt[required]; !ok {
			return nil, dErrors.Newf(dErrors.CodeConfiguration, "exempt routes must include %q", required)
		}
	}

	g := &Gate{
		service:      service,
		redirectPath: redirectPath,
		exempt:       exempt,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Enforce returns the middleware for a route. The route's name decides
// exemption; unnamed application routes pass "".
func (g *Gate) Enforce(routeName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Unauthenticated traffic is out of scope for this gate.
			pid := requestcontext.PrincipalID(ctx)
			if pid.IsNil() {
				next.ServeHTTP(w, r)
				return
			}

			// The recovery routes stay reachable regardless of expiry state.
			if _, ok := g.exempt[routeName]; ok {
				next.ServeHTTP(w, r)
				return
			}

			g.metrics.IncrementCheck()

			store, err := g.service.Registry().For(requestcontext.PrincipalKind(ctx))
			if err != nil {
				g.fail(ctx, w, "resolve principal store", err)
				return
			}
			subject, err := store.FindByID(ctx, pid)
			if err != nil {
				// Enforcement cannot evaluate a principal it cannot load;
				// failing open here would let stale credentials through.
				g.fail(ctx, w, "load principal", err)
				return
			}

			now := requestcontext.Now(ctx)
			messages, err := g.check(ctx, subject, now)
			if err != nil {
				g.fail(ctx, w, "evaluate hygiene policy", err)
				return
			}

			if len(messages) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			g.deny(w, r, messages)
		})
	}
}

// check evaluates both predicates, appending a detection record and
// collecting a message for each violation. Both are always evaluated so the
// caller sees every reason, not just the first.
func (g *Gate) check(ctx context.Context, subject *principal.Principal, now time.Time) ([]string, error) {
	var messages []string

	verificationExpired, err := g.service.Policy().VerificationExpired(subject, now)
	if err != nil {
		return nil, err
	}
	if verificationExpired {
		messages = append(messages, hygiene.MsgVerificationExpired)
		if err := g.service.RecordDetection(ctx, subject, hygiene.ReasonVerificationExpired); err != nil {
			return nil, err
		}
		if err := g.service.NotifyVerification(ctx, subject); err != nil {
			return nil, err
		}
		g.metrics.IncrementDenial("verification_expired")
	}

	passwordExpired, err := g.service.Policy().PasswordExpired(ctx, subject, now)
	if err != nil {
		return nil, err
	}
	if passwordExpired {
		// No reset notification on the audited path; only the message is
		// surfaced. The reset flow itself is external.
		messages = append(messages, hygiene.MsgPasswordExpired)
		if err := g.service.RecordDetection(ctx, subject, hygiene.ReasonPasswordExpired); err != nil {
			return nil, err
		}
		g.metrics.IncrementDenial("password_expired")
	}

	return messages, nil
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, messages []string) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Verification required",
			"details": messages,
		})
		return
	}

	SetFlash(w, messages)
	http.Redirect(w, r, g.redirectPath, http.StatusSeeOther)
}

// fail denies the request with a coded error. A storage failure while
// auditing is fatal to the request: enforcement never silently allows a
// stale credential through because auditing failed.
func (g *Gate) fail(ctx context.Context, w http.ResponseWriter, action string, err error) {
	g.logger.ErrorContext(ctx, "enforcement gate failure",
		"action", action,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(code)})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
