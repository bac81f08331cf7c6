package principal

import (
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// Registry maps a logical principal-kind key to the store serving that kind,
// with one designated default. It is assembled once at startup; an
// unresolvable key is a configuration error surfaced by the constructor, not
// a runtime lookup failure.
type Registry struct {
	stores      map[id.PrincipalKind]Store
	defaultKind id.PrincipalKind
}

// NewRegistry builds a registry from the given stores. The default kind must
// be among them.
func NewRegistry(defaultKind id.PrincipalKind, stores ...Store) (*Registry, error) {
	if len(stores) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "at least one principal store is required")
	}
	byKind := make(map[id.PrincipalKind]Store, len(stores))
	for _, store := range stores {
		kind := store.Kind()
		if kind == "" {
			return nil, dErrors.New(dErrors.CodeConfiguration, "principal store with empty kind")
		}
		if _, exists := byKind[kind]; exists {
			return nil, dErrors.Newf(dErrors.CodeConfiguration, "duplicate principal store for kind %q", kind)
		}
		byKind[kind] = store
	}
	if _, ok := byKind[defaultKind]; !ok {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "default principal kind %q has no store", defaultKind)
	}
	return &Registry{stores: byKind, defaultKind: defaultKind}, nil
}

// For resolves the store for a kind. The empty kind selects the default.
func (r *Registry) For(kind id.PrincipalKind) (Store, error) {
	if kind == "" {
		kind = r.defaultKind
	}
	store, ok := r.stores[kind]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "no principal store for kind %q", kind)
	}
	return store, nil
}

// DefaultKind returns the registry's designated default kind.
func (r *Registry) DefaultKind() id.PrincipalKind { return r.defaultKind }

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []id.PrincipalKind {
	kinds := make([]id.PrincipalKind, 0, len(r.stores))
	for kind := range r.stores {
		kinds = append(kinds, kind)
	}
	return kinds
}
