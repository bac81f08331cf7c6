package ledger

import (
	"context"
	"time"

	id "vigil/pkg/domain"
)

// Store is the persistence boundary for the audit ledger. Interface-driven so
// domain logic stays testable against the memory implementation while
// production runs on Postgres. Every write is an independent insert; the
// ledger never updates or deletes rows.
type Store interface {
	// Append persists a new record, assigning its ID and creation timestamps.
	// The returned record is the stored copy.
	Append(ctx context.Context, record *Record) (*Record, error)

	// LatestPasswordChange returns the subject's most recent record with a
	// password-change timestamp, ordered by that timestamp descending with
	// ties broken by record ID descending. Returns sentinel.ErrNotFound when
	// the subject has no such record.
	LatestPasswordChange(ctx context.Context, subject Subject) (*Record, error)

	// ListBySubject returns the subject's records passing the filter, newest
	// append first.
	ListBySubject(ctx context.Context, subject Subject, filter Filter) ([]*Record, error)

	// ListByTrigger returns records a principal triggered on others, newest
	// append first.
	ListByTrigger(ctx context.Context, trigger Subject, filter Filter) ([]*Record, error)

	// CountBySubject counts the subject's records passing the filter.
	CountBySubject(ctx context.Context, subject Subject, filter Filter) (int, error)

	// FreshPasswordSubjects returns the set of subject IDs of the given kind
	// whose latest password change is strictly after cutoff. The complement
	// over the principal set is "password expired": principals absent here
	// either never rotated or rotated too long ago.
	FreshPasswordSubjects(ctx context.Context, kind id.PrincipalKind, cutoff time.Time) (map[id.PrincipalID]struct{}, error)
}
