// Package hygiene orchestrates the credential-hygiene operations: bulk
// reverification and password-change requests, expired-set queries, and the
// completion event hooks fired by the surrounding identity system.
package hygiene

import (
	"context"
	"log/slog"

	"vigil/internal/ledger"
	"vigil/internal/notify"
	"vigil/internal/platform/metrics"
	"vigil/internal/policy"
	"vigil/internal/principal"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/email"
	"vigil/pkg/requestcontext"
)

// Audit reasons written by this core. The gate and the hooks share them with
// the test suite and downstream reporting.
const (
	ReasonVerificationExpired    = "Email verification expired"
	ReasonPasswordExpired        = "Password expired"
	ReasonVerificationCompleted  = "Email verification completed"
	ReasonPasswordResetCompleted = "Password reset completed"
)

// Human-facing messages surfaced on denied requests.
const (
	MsgVerificationExpired = "Your email verification has expired. Please verify your email address."
	MsgPasswordExpired     = "Your password has expired. Please change your password."
)

// Service wires the policy, the ledger, the principal registry and the
// notification boundary together.
type Service struct {
	registry *principal.Registry
	ledger   ledger.Store
	policy   *policy.Policy
	sender   notify.Sender
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds the hygiene service. Registry, ledger, policy and sender are
// required.
func New(registry *principal.Registry, store ledger.Store, pol *policy.Policy, sender notify.Sender, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "principal registry is required")
	}
	if store == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "ledger store is required")
	}
	if pol == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "policy is required")
	}
	if sender == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "notification sender is required")
	}
	s := &Service{
		registry: registry,
		ledger:   store,
		policy:   pol,
		sender:   sender,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy exposes the expiry rules for the enforcement gate.
func (s *Service) Policy() *policy.Policy { return s.policy }

// Ledger exposes the audit store for the enforcement gate and transport views.
func (s *Service) Ledger() ledger.Store { return s.ledger }

// Registry exposes the principal registry.
func (s *Service) Registry() *principal.Registry { return s.registry }

// BatchFailure records one principal a bulk operation could not process.
type BatchFailure struct {
	PrincipalID id.PrincipalID
	Err         error
}

// BatchResult reports a bulk operation's outcome. Elements are processed
// independently; earlier successes stand whatever happens later, so both
// lists can be non-empty.
type BatchResult struct {
	Processed []id.PrincipalID
	Failures  []BatchFailure
}

// RequestReverification clears each resolved principal's verification
// timestamp, appends an audit note for the clearing, and requests a
// verification notification. The trigger defaults to system when
// unspecified. A failing element is reported in the result and does not stop
// the batch.
func (s *Service) RequestReverification(ctx context.Context, sel Selection, reason string, trigger ledger.Trigger) (*BatchResult, error) {
	principals, err := s.Resolve(ctx, sel)
	if err != nil {
		return nil, err
	}
	if trigger.IsZero() {
		trigger = ledger.SystemTrigger()
	}

	result := &BatchResult{}
	for _, p := range principals {
		if err := s.reverifyOne(ctx, p, reason, trigger); err != nil {
			s.logger.ErrorContext(ctx, "reverification request failed",
				"principal_id", p.ID, "email", email.Mask(p.Email), "error", err)
			result.Failures = append(result.Failures, BatchFailure{PrincipalID: p.ID, Err: err})
			continue
		}
		result.Processed = append(result.Processed, p.ID)
	}
	return result, nil
}

func (s *Service) reverifyOne(ctx context.Context, p *principal.Principal, reason string, trigger ledger.Trigger) error {
	store, err := s.registry.For(p.Kind)
	if err != nil {
		return err
	}

	p.ClearVerification()
	if err := store.Save(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "clear verification")
	}

	// The clearing is the event being recorded: neither timestamp is set.
	note := ledger.NewNote(subjectOf(p), p.Email, trigger, reason)
	if err := s.append(ctx, note); err != nil {
		return err
	}

	if err := s.sender.SendVerificationNotification(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "send verification notification")
	}
	s.metrics.IncrementNotification("verification")
	return nil
}

// RequestPasswordChange appends an audit note for each resolved principal and
// requests a password-reset notification with a fresh token. The principal
// itself is untouched; the password-changed timestamp is written later, when
// the reset completes, via PasswordResetCompleted.
func (s *Service) RequestPasswordChange(ctx context.Context, sel Selection, reason string, trigger ledger.Trigger) (*BatchResult, error) {
	principals, err := s.Resolve(ctx, sel)
	if err != nil {
		return nil, err
	}
	if trigger.IsZero() {
		trigger = ledger.SystemTrigger()
	}

	result := &BatchResult{}
	for _, p := range principals {
		if err := s.passwordChangeOne(ctx, p, reason, trigger); err != nil {
			s.logger.ErrorContext(ctx, "password change request failed",
				"principal_id", p.ID, "email", email.Mask(p.Email), "error", err)
			result.Failures = append(result.Failures, BatchFailure{PrincipalID: p.ID, Err: err})
			continue
		}
		result.Processed = append(result.Processed, p.ID)
	}
	return result, nil
}

func (s *Service) passwordChangeOne(ctx context.Context, p *principal.Principal, reason string, trigger ledger.Trigger) error {
	note := ledger.NewNote(subjectOf(p), p.Email, trigger, reason)
	if err := s.append(ctx, note); err != nil {
		return err
	}

	if err := s.sender.SendPasswordResetNotification(ctx, p, notify.NewResetToken()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "send password reset notification")
	}
	s.metrics.IncrementNotification("password_reset")
	return nil
}

// ExpiredVerification returns, across every registered kind, the principals
// whose verification is absent or at/before the cutoff. Evaluated as one
// set-wise query per kind; membership equals applying the policy predicate
// to each principal individually.
func (s *Service) ExpiredVerification(ctx context.Context) ([]*principal.Principal, error) {
	now := requestcontext.Now(ctx)
	query := principal.VerificationExpiredQuery(s.policy.VerificationCutoff(now))

	var out []*principal.Principal
	for _, kind := range s.registry.Kinds() {
		store, err := s.registry.For(kind)
		if err != nil {
			return nil, err
		}
		matched, err := store.FindMatching(ctx, query)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query expired verification")
		}
		out = append(out, matched...)
	}
	return out, nil
}

// ExpiredPasswords returns, across every registered kind, the principals
// whose latest password-change record is absent or at/before the cutoff.
func (s *Service) ExpiredPasswords(ctx context.Context) ([]*principal.Principal, error) {
	now := requestcontext.Now(ctx)
	cutoff := s.policy.PasswordCutoff(now)

	var out []*principal.Principal
	for _, kind := range s.registry.Kinds() {
		store, err := s.registry.For(kind)
		if err != nil {
			return nil, err
		}
		all, err := store.List(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list principals")
		}
		fresh, err := s.ledger.FreshPasswordSubjects(ctx, kind, cutoff)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query fresh password subjects")
		}
		for _, p := range all {
			if _, ok := fresh[p.ID]; !ok {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// RequiringAction returns the union of ExpiredVerification and
// ExpiredPasswords, deduplicated by principal identity.
func (s *Service) RequiringAction(ctx context.Context) ([]*principal.Principal, error) {
	expiredVerification, err := s.ExpiredVerification(ctx)
	if err != nil {
		return nil, err
	}
	expiredPasswords, err := s.ExpiredPasswords(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[ledger.Subject]struct{})
	var out []*principal.Principal
	for _, p := range append(expiredVerification, expiredPasswords...) {
		key := subjectOf(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// VerificationCompleted is the event hook the identity system fires when a
// principal finishes email verification. It stamps the principal and appends
// the one record that carries a real verified_at. The trigger defaults to the
// principal acting on itself.
func (s *Service) VerificationCompleted(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID, trigger ledger.Trigger) (*ledger.Record, error) {
	store, err := s.registry.For(kind)
	if err != nil {
		return nil, err
	}
	p, err := store.FindByID(ctx, pid)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "principal not found")
	}

	now := requestcontext.Now(ctx)
	p.MarkVerified(now)
	if err := store.Save(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save verification timestamp")
	}

	if trigger.IsZero() {
		trigger = ledger.SelfTrigger()
	}
	record := ledger.NewVerification(subjectOf(p), p.Email, now, trigger, ReasonVerificationCompleted)
	stored, err := s.appendReturning(ctx, record)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, ReasonVerificationCompleted,
		"principal_id", p.ID, "email", email.Mask(p.Email), "log_type", "audit")
	return stored, nil
}

// PasswordResetCompleted is the event hook fired when a password reset
// completes. It appends the one record that carries a real
// password_changed_at; the principal row is untouched.
func (s *Service) PasswordResetCompleted(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID, trigger ledger.Trigger) (*ledger.Record, error) {
	store, err := s.registry.For(kind)
	if err != nil {
		return nil, err
	}
	p, err := store.FindByID(ctx, pid)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "principal not found")
	}

	now := requestcontext.Now(ctx)
	if trigger.IsZero() {
		trigger = ledger.SelfTrigger()
	}
	record := ledger.NewPasswordChange(subjectOf(p), p.Email, now, trigger, ReasonPasswordResetCompleted)
	stored, err := s.appendReturning(ctx, record)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, ReasonPasswordResetCompleted,
		"principal_id", p.ID, "email", email.Mask(p.Email), "log_type", "audit")
	return stored, nil
}

// RecordDetection appends a system-triggered audit note for an expiry the
// enforcement gate observed. The note carries neither event timestamp: it
// records the detection, not a completion.
func (s *Service) RecordDetection(ctx context.Context, p *principal.Principal, reason string) error {
	note := ledger.NewNote(subjectOf(p), p.Email, ledger.SystemTrigger(), reason)
	return s.append(ctx, note)
}

// NotifyVerification requests a verification notification for an
// already-materialized principal.
func (s *Service) NotifyVerification(ctx context.Context, p *principal.Principal) error {
	if err := s.sender.SendVerificationNotification(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "send verification notification")
	}
	s.metrics.IncrementNotification("verification")
	return nil
}

// ResendVerification requests a fresh verification notification without
// touching state. Backs the verification.send route.
func (s *Service) ResendVerification(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID) error {
	p, err := s.findPrincipal(ctx, kind, pid)
	if err != nil {
		return err
	}
	if err := s.sender.SendVerificationNotification(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "send verification notification")
	}
	s.metrics.IncrementNotification("verification")
	return nil
}

// RequestReset requests a password-reset notification for one principal.
// Backs the password.request route.
func (s *Service) RequestReset(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID) error {
	p, err := s.findPrincipal(ctx, kind, pid)
	if err != nil {
		return err
	}
	if err := s.sender.SendPasswordResetNotification(ctx, p, notify.NewResetToken()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "send password reset notification")
	}
	s.metrics.IncrementNotification("password_reset")
	return nil
}

// AuditHistory returns a principal's ledger records, filtered.
func (s *Service) AuditHistory(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID, filter ledger.Filter) ([]*ledger.Record, error) {
	records, err := s.ledger.ListBySubject(ctx, ledger.Subject{Kind: kind, ID: pid}, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit records")
	}
	return records, nil
}

// TriggeredHistory returns the records a principal triggered on others.
func (s *Service) TriggeredHistory(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID, filter ledger.Filter) ([]*ledger.Record, error) {
	records, err := s.ledger.ListByTrigger(ctx, ledger.Subject{Kind: kind, ID: pid}, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list triggered records")
	}
	return records, nil
}

func (s *Service) findPrincipal(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID) (*principal.Principal, error) {
	store, err := s.registry.For(kind)
	if err != nil {
		return nil, err
	}
	p, err := store.FindByID(ctx, pid)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "principal not found")
	}
	return p, nil
}

func (s *Service) append(ctx context.Context, record *ledger.Record) error {
	_, err := s.appendReturning(ctx, record)
	return err
}

func (s *Service) appendReturning(ctx context.Context, record *ledger.Record) (*ledger.Record, error) {
	stored, err := s.ledger.Append(ctx, record)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "append audit record")
	}
	s.metrics.IncrementLedgerAppend(stored.Kind())
	return stored, nil
}

func subjectOf(p *principal.Principal) ledger.Subject {
	kind, pid := p.Subject()
	return ledger.Subject{Kind: kind, ID: pid}
}
