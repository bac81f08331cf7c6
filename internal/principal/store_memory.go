package principal

import (
	"context"
	"sort"
	"sync"

	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// InMemoryStore keeps principals of one kind in process memory. Backs unit
// tests and demo mode.
type InMemoryStore struct {
	kind       id.PrincipalKind
	mu         sync.RWMutex
	principals map[id.PrincipalID]*Principal
}

func NewInMemoryStore(kind id.PrincipalKind) *InMemoryStore {
	return &InMemoryStore{
		kind:       kind,
		principals: make(map[id.PrincipalID]*Principal),
	}
}

func (s *InMemoryStore) Kind() id.PrincipalKind { return s.kind }

func (s *InMemoryStore) FindByID(_ context.Context, pid id.PrincipalID) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[pid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *InMemoryStore) FindByIDs(_ context.Context, pids []id.PrincipalID) ([]*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Principal
	for _, pid := range pids {
		if p, ok := s.principals[pid]; ok {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindMatching(_ context.Context, query Query) ([]*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Principal
	for _, p := range s.principals {
		if query.Matches(p) {
			copied := *p
			out = append(out, &copied)
		}
	}
	sortByEmail(out)
	return out, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Principal, 0, len(s.principals))
	for _, p := range s.principals {
		copied := *p
		out = append(out, &copied)
	}
	sortByEmail(out)
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	copied.Kind = s.kind
	s.principals[p.ID] = &copied
	return nil
}

// Deterministic ordering keeps listings and tests stable; maps iterate randomly.
func sortByEmail(principals []*Principal) {
	sort.Slice(principals, func(i, j int) bool {
		return principals[i].Email < principals[j].Email
	})
}
