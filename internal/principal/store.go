package principal

import (
	"context"

	id "vigil/pkg/domain"
)

// Store is the persistence boundary for one principal kind. Interface-driven
// so the service layer stays testable and so each authenticatable kind can be
// backed by its own table.
type Store interface {
	// Kind returns the principal kind this store serves.
	Kind() id.PrincipalKind

	// FindByID returns the principal or sentinel.ErrNotFound.
	FindByID(ctx context.Context, pid id.PrincipalID) (*Principal, error)

	// FindByIDs returns the principals for the given IDs. Unknown IDs are
	// skipped, not errors: resolving zero principals is a valid outcome.
	FindByIDs(ctx context.Context, pids []id.PrincipalID) ([]*Principal, error)

	// FindMatching executes a deferred query as a single set-wise lookup.
	FindMatching(ctx context.Context, query Query) ([]*Principal, error)

	// List returns all principals of this kind.
	List(ctx context.Context) ([]*Principal, error)

	// Save persists the principal's verification timestamp. The rest of the
	// entity is owned by the surrounding identity system and never written
	// from here.
	Save(ctx context.Context, p *Principal) error
}
