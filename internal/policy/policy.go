// Package policy holds the expiry decision rules. Both predicates are pure
// functions of the supplied "now" and stored state: no side effects, fully
// deterministic under an injected clock.
package policy

import (
	"context"
	"errors"
	"time"

	"vigil/internal/ledger"
	"vigil/internal/principal"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/sentinel"
)

// DefaultExpiryDays is the window applied to both verification and password
// age when no explicit option is supplied.
const DefaultExpiryDays = 30

// PasswordHistory is the slice of the ledger the password predicate needs.
type PasswordHistory interface {
	LatestPasswordChange(ctx context.Context, subject ledger.Subject) (*ledger.Record, error)
}

// Policy evaluates credential staleness against configured day windows.
type Policy struct {
	verificationExpiryDays int
	passwordExpiryDays     int
	history                PasswordHistory
}

// Option configures a Policy. Options only ever apply explicitly supplied
// values; an omitted option leaves the default in place, and a constructed
// Policy never falls back to the default afterwards.
type Option func(*Policy)

// WithVerificationExpiryDays sets the verification window.
func WithVerificationExpiryDays(days int) Option {
	return func(p *Policy) {
		p.verificationExpiryDays = days
	}
}

// WithPasswordExpiryDays sets the password window.
func WithPasswordExpiryDays(days int) Option {
	return func(p *Policy) {
		p.passwordExpiryDays = days
	}
}

// New builds a Policy over the given ledger history. Windows default to
// DefaultExpiryDays unless overridden.
func New(history PasswordHistory, opts ...Option) (*Policy, error) {
	if history == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "password history is required")
	}
	p := &Policy{
		verificationExpiryDays: DefaultExpiryDays,
		passwordExpiryDays:     DefaultExpiryDays,
		history:                history,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.verificationExpiryDays <= 0 {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "verification expiry days must be positive, got %d", p.verificationExpiryDays)
	}
	if p.passwordExpiryDays <= 0 {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "password expiry days must be positive, got %d", p.passwordExpiryDays)
	}
	return p, nil
}

// VerificationExpiryDays returns the configured verification window.
func (p *Policy) VerificationExpiryDays() int { return p.verificationExpiryDays }

// PasswordExpiryDays returns the configured password window.
func (p *Policy) PasswordExpiryDays() int { return p.passwordExpiryDays }

// VerificationExpired reports whether the principal's email verification is
// stale at now: never verified, or verified at or before the cutoff. Both
// predicates compare stored timestamps against the same cutoff the set
// queries use, so membership agrees regardless of the timestamps' locations.
func (p *Policy) VerificationExpired(subject *principal.Principal, now time.Time) (bool, error) {
	if subject == nil {
		return false, dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	if subject.LastVerifiedAt == nil {
		return true, nil
	}
	return !subject.LastVerifiedAt.After(p.VerificationCutoff(now)), nil
}

// PasswordExpired reports whether the principal's password is stale at now,
// judged by the most recent ledger record carrying a password-change
// timestamp. A principal with no such record is treated as maximally stale:
// enforcement holds until one reset completes. Deployments that do not want
// day-one enforcement seed a baseline password-change record at onboarding.
func (p *Policy) PasswordExpired(ctx context.Context, subject *principal.Principal, now time.Time) (bool, error) {
	if subject == nil {
		return false, dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}

	kind, pid := subject.Subject()
	last, err := p.history.LatestPasswordChange(ctx, ledger.Subject{Kind: kind, ID: pid})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return true, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "look up last password change")
	}

	return !last.PasswordChangedAt.After(p.PasswordCutoff(now)), nil
}

// VerificationCutoff returns the newest verification timestamp that still
// counts as expired at now. Set queries compare against this so their
// membership equals per-principal evaluation of VerificationExpired.
func (p *Policy) VerificationCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.verificationExpiryDays)
}

// PasswordCutoff is the password-window analogue of VerificationCutoff.
func (p *Policy) PasswordCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.passwordExpiryDays)
}
