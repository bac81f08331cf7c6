package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// InMemoryStore keeps the ledger in process memory. It favors clarity over
// performance and backs unit tests and demo mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	nextID  id.RecordID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Append(ctx context.Context, record *Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	stored.ID = s.nextID
	s.nextID++

	now := requestcontext.Now(ctx)
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.records = append(s.records, &stored)
	result := stored
	return &result, nil
}

func (s *InMemoryStore) LatestPasswordChange(_ context.Context, subject Subject) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Record
	for _, r := range s.records {
		if r.Subject != subject || r.PasswordChangedAt == nil {
			continue
		}
		if latest == nil || moreRecentPasswordChange(r, latest) {
			latest = r
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	result := *latest
	return &result, nil
}

// moreRecentPasswordChange orders by password_changed_at, then record ID, so
// of two records claiming the same change time the most recently appended wins.
func moreRecentPasswordChange(a, b *Record) bool {
	if a.PasswordChangedAt.Equal(*b.PasswordChangedAt) {
		return a.ID > b.ID
	}
	return a.PasswordChangedAt.After(*b.PasswordChangedAt)
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject Subject, filter Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, r := range s.records {
		if r.Subject == subject && filter.Matches(r) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListByTrigger(_ context.Context, trigger Subject, filter Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, r := range s.records {
		p, ok := r.Trigger.Principal()
		if ok && p == trigger && filter.Matches(r) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) CountBySubject(_ context.Context, subject Subject, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.records {
		if r.Subject == subject && filter.Matches(r) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) FreshPasswordSubjects(_ context.Context, kind id.PrincipalKind, cutoff time.Time) (map[id.PrincipalID]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[id.PrincipalID]time.Time)
	for _, r := range s.records {
		if r.Subject.Kind != kind || r.PasswordChangedAt == nil {
			continue
		}
		if existing, ok := latest[r.Subject.ID]; !ok || r.PasswordChangedAt.After(existing) {
			latest[r.Subject.ID] = *r.PasswordChangedAt
		}
	}

	fresh := make(map[id.PrincipalID]struct{})
	for pid, changedAt := range latest {
		if changedAt.After(cutoff) {
			fresh[pid] = struct{}{}
		}
	}
	return fresh, nil
}

func sortNewestFirst(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID > records[j].ID
	})
}
