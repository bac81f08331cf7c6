package hygiene

import (
	"context"

	"vigil/internal/principal"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// selectionKind discriminates the Selection union.
type selectionKind int

const (
	selectNothing selectionKind = iota
	selectOne
	selectMany
	selectByIDs
	selectMatching
)

// Selection names the principals a bulk operation targets. Callers choose the
// variant explicitly instead of the resolver sniffing element types at
// runtime, so a list of identifiers and a list of principals can never be
// confused, whatever the identifier scheme.
type Selection struct {
	kind  selectionKind
	one   *principal.Principal
	many  []*principal.Principal
	ids   []id.PrincipalID
	pkind id.PrincipalKind
	query principal.Query
}

// SelectOne targets a single already-materialized principal.
func SelectOne(p *principal.Principal) Selection {
	return Selection{kind: selectOne, one: p}
}

// SelectMany targets an already-materialized set, passed through unchanged.
func SelectMany(ps []*principal.Principal) Selection {
	return Selection{kind: selectMany, many: ps}
}

// SelectByIDs targets principals by identifier, fetched against the given
// kind's store. The empty kind selects the registry default. Unknown IDs
// resolve to nothing rather than failing: bulk operations over an empty set
// are no-ops.
func SelectByIDs(kind id.PrincipalKind, ids ...id.PrincipalID) Selection {
	return Selection{kind: selectByIDs, pkind: kind, ids: ids}
}

// SelectMatching targets the result set of a deferred query, executed at
// resolve time against the given kind's store.
func SelectMatching(kind id.PrincipalKind, query principal.Query) Selection {
	return Selection{kind: selectMatching, pkind: kind, query: query}
}

// Resolve materializes a Selection into a concrete principal set.
func (s *Service) Resolve(ctx context.Context, sel Selection) ([]*principal.Principal, error) {
	switch sel.kind {
	case selectOne:
		if sel.one == nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "selection principal is required")
		}
		return []*principal.Principal{sel.one}, nil
	case selectMany:
		return sel.many, nil
	case selectByIDs:
		store, err := s.registry.For(sel.pkind)
		if err != nil {
			return nil, err
		}
		return store.FindByIDs(ctx, sel.ids)
	case selectMatching:
		store, err := s.registry.For(sel.pkind)
		if err != nil {
			return nil, err
		}
		return store.FindMatching(ctx, sel.query)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "empty selection")
	}
}
