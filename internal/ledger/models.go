// Package ledger is the append-only audit trail for credential-hygiene
// events. Every verification, password change, detection, and bulk
// administrative action lands here as one immutable record tied to a subject
// principal and, when known, the principal or system actor that triggered it.
package ledger

import (
	"time"

	id "vigil/pkg/domain"
)

// Subject is the polymorphic reference to the principal a record is about.
type Subject struct {
	Kind id.PrincipalKind
	ID   id.PrincipalID
}

func (s Subject) IsZero() bool {
	return s.Kind == "" && s.ID.IsNil()
}

// triggerKind discriminates the Trigger union.
type triggerKind int

const (
	triggerNone triggerKind = iota
	triggerSystem
	triggerSelf
	triggerPrincipal
)

// Sentinel values stored in the triggered_by column for non-principal triggers.
const (
	triggerSentinelSystem = "system"
	triggerSentinelSelf   = "user"
)

// Trigger identifies who or what caused an event. It is a tagged union of
// {none, system, the subject acting on itself, another principal}; the
// ambiguous kind-without-id state cannot be represented.
type Trigger struct {
	kind      triggerKind
	principal Subject
}

// NoTrigger is an unspecified trigger.
func NoTrigger() Trigger { return Trigger{} }

// SystemTrigger marks an event initiated by the system itself, e.g. an expiry
// detected by the enforcement gate.
func SystemTrigger() Trigger { return Trigger{kind: triggerSystem} }

// SelfTrigger marks a self-service event, e.g. a user completing their own
// verification.
func SelfTrigger() Trigger { return Trigger{kind: triggerSelf} }

// PrincipalTrigger marks an event initiated by another principal, e.g. an
// admin forcing reverification.
func PrincipalTrigger(kind id.PrincipalKind, pid id.PrincipalID) Trigger {
	return Trigger{kind: triggerPrincipal, principal: Subject{Kind: kind, ID: pid}}
}

func (t Trigger) IsZero() bool   { return t.kind == triggerNone }
func (t Trigger) IsSystem() bool { return t.kind == triggerSystem }
func (t Trigger) IsSelf() bool   { return t.kind == triggerSelf }

// Principal returns the triggering principal, if the trigger is one.
func (t Trigger) Principal() (Subject, bool) {
	if t.kind != triggerPrincipal {
		return Subject{}, false
	}
	return t.principal, true
}

// String renders the triggered_by column value: a sentinel, a principal UUID,
// or "" for unspecified.
func (t Trigger) String() string {
	switch t.kind {
	case triggerSystem:
		return triggerSentinelSystem
	case triggerSelf:
		return triggerSentinelSelf
	case triggerPrincipal:
		return t.principal.ID.String()
	default:
		return ""
	}
}

// triggerFromColumns rebuilds the union from its storage representation.
// A non-empty kind column means a principal trigger; otherwise the by column
// is a sentinel or empty.
func triggerFromColumns(by, kind string) Trigger {
	if kind != "" {
		pid, err := id.ParsePrincipalID(by)
		if err != nil {
			return Trigger{}
		}
		return PrincipalTrigger(id.PrincipalKind(kind), pid)
	}
	switch by {
	case triggerSentinelSystem:
		return SystemTrigger()
	case triggerSentinelSelf:
		return SelfTrigger()
	default:
		return Trigger{}
	}
}

// Record is one immutable audit entry. A record may carry a verification
// timestamp, a password-change timestamp, both, or neither; a record with
// neither is a generic note such as an expiry detection. Records are
// write-once: production code never updates a row after Append.
type Record struct {
	ID                id.RecordID
	Subject           Subject
	Email             string
	VerifiedAt        *time.Time
	PasswordChangedAt *time.Time
	Trigger           Trigger
	Reason            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewNote builds a generic record with neither event timestamp set.
func NewNote(subject Subject, email string, trigger Trigger, reason string) *Record {
	return &Record{
		Subject: subject,
		Email:   email,
		Trigger: trigger,
		Reason:  reason,
	}
}

// NewVerification builds a record for a completed email verification.
func NewVerification(subject Subject, email string, verifiedAt time.Time, trigger Trigger, reason string) *Record {
	r := NewNote(subject, email, trigger, reason)
	r.MarkVerified(verifiedAt)
	return r
}

// NewPasswordChange builds a record for a completed password change.
func NewPasswordChange(subject Subject, email string, changedAt time.Time, trigger Trigger, reason string) *Record {
	r := NewNote(subject, email, trigger, reason)
	r.MarkPasswordChanged(changedAt)
	return r
}

// MarkVerified sets the verification timestamp. State-transition helper for
// construction and fixtures only; appended records are never mutated.
func (r *Record) MarkVerified(t time.Time) {
	r.VerifiedAt = &t
}

// MarkPasswordChanged sets the password-change timestamp. Same contract as
// MarkVerified.
func (r *Record) MarkPasswordChanged(t time.Time) {
	r.PasswordChangedAt = &t
}

// Kind classifies the record for metrics and listings.
func (r *Record) Kind() string {
	switch {
	case r.VerifiedAt != nil && r.PasswordChangedAt != nil:
		return "verification+password_change"
	case r.VerifiedAt != nil:
		return "verification"
	case r.PasswordChangedAt != nil:
		return "password_change"
	default:
		return "note"
	}
}

// Filter narrows subject listings. Zero value matches everything. These are
// read-only projections over the one ledger, not separate stores.
type Filter struct {
	Since           *time.Time // only records created at or after Since
	PasswordChanges bool       // only records with password_changed_at set
	Verifications   bool       // only records with verified_at set
}

// Recent returns a filter for records created within the last N days of now.
func Recent(days int, now time.Time) Filter {
	since := now.AddDate(0, 0, -days)
	return Filter{Since: &since}
}

// Matches reports whether a record passes the filter. The memory store and
// tests share this; the Postgres store compiles the same conditions to SQL.
func (f Filter) Matches(r *Record) bool {
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.PasswordChanges && r.PasswordChangedAt == nil {
		return false
	}
	if f.Verifications && r.VerifiedAt == nil {
		return false
	}
	return true
}
