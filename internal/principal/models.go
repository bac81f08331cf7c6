// Package principal owns the read/write surface vigil needs from the
// surrounding identity system's authenticatable entities: identity, email,
// and the nullable last-verified timestamp. Everything else about a principal
// belongs to that system, not here.
package principal

import (
	"time"

	id "vigil/pkg/domain"
)

// Principal is the slice of an authenticatable entity this core reads and
// writes. A nil LastVerifiedAt means the email was never verified.
type Principal struct {
	ID             id.PrincipalID
	Kind           id.PrincipalKind
	Email          string
	LastVerifiedAt *time.Time
}

// Subject returns the ledger subject reference for this principal.
func (p *Principal) Subject() (id.PrincipalKind, id.PrincipalID) {
	return p.Kind, p.ID
}

// ClearVerification drops the last-verified timestamp, forcing the principal
// back through verification.
func (p *Principal) ClearVerification() {
	p.LastVerifiedAt = nil
}

// MarkVerified records a completed verification at t.
func (p *Principal) MarkVerified(t time.Time) {
	p.LastVerifiedAt = &t
}

// Query is a deferred predicate over principals of one kind, executed by a
// store as a single set-wise query. The zero value matches everything.
type Query struct {
	// Unverified matches principals with no last-verified timestamp.
	Unverified bool
	// VerifiedBefore matches principals verified at or before the given time.
	// Combined with Unverified it expresses "verification expired".
	VerifiedBefore *time.Time
	// EmailDomain matches principals whose address ends in "@" + domain.
	EmailDomain string
}

// Matches evaluates the predicate against one principal. The memory store and
// set-query equivalence tests share this; the Postgres store compiles the
// same conditions to SQL.
func (q Query) Matches(p *Principal) bool {
	if q.EmailDomain != "" && !hasDomain(p.Email, q.EmailDomain) {
		return false
	}
	if q.Unverified || q.VerifiedBefore != nil {
		if p.LastVerifiedAt == nil {
			return q.Unverified
		}
		return q.VerifiedBefore != nil && !p.LastVerifiedAt.After(*q.VerifiedBefore)
	}
	return true
}

// VerificationExpiredQuery matches principals whose verification is absent or
// at/before the cutoff. Membership equals applying the policy predicate to
// every principal one at a time.
func VerificationExpiredQuery(cutoff time.Time) Query {
	return Query{Unverified: true, VerifiedBefore: &cutoff}
}

func hasDomain(email, domain string) bool {
	suffix := "@" + domain
	if len(email) <= len(suffix) {
		return false
	}
	return email[len(email)-len(suffix):] == suffix
}
