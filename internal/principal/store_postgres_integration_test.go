//go:build integration

package principal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigil/internal/principal"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *principal.PostgresStore
	ctx      context.Context
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = principal.NewPostgres(s.postgres.DB, id.KindDefault)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "principals"))
}

// insert seeds a row directly: principal rows are owned by the surrounding
// identity system, the store only ever updates the verification timestamp.
func (s *PostgresStoreSuite) insert(kind id.PrincipalKind, email string, verifiedAt *time.Time) *principal.Principal {
	p := &principal.Principal{
		ID:             id.NewPrincipalID(),
		Kind:           kind,
		Email:          email,
		LastVerifiedAt: verifiedAt,
	}
	_, err := s.postgres.DB.ExecContext(s.ctx,
		"INSERT INTO principals (id, kind, email, email_verified_at) VALUES ($1, $2, $3, $4)",
		uuid.UUID(p.ID), kind.String(), email, verifiedAt)
	s.Require().NoError(err)
	return p
}

func (s *PostgresStoreSuite) TestFindByID() {
	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewPrincipalID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("round trips nullable verification", func() {
		verifiedAt := s.now.AddDate(0, 0, -3)
		verified := s.insert(id.KindDefault, "v@example.com", &verifiedAt)
		unverified := s.insert(id.KindDefault, "u@example.com", nil)

		got, err := s.store.FindByID(s.ctx, verified.ID)
		s.Require().NoError(err)
		s.Require().NotNil(got.LastVerifiedAt)
		s.True(got.LastVerifiedAt.Equal(verifiedAt))

		got, err = s.store.FindByID(s.ctx, unverified.ID)
		s.Require().NoError(err)
		s.Nil(got.LastVerifiedAt)
	})

	s.Run("scoped to the store's kind", func() {
		other := s.insert("admin", "a@example.com", nil)
		_, err := s.store.FindByID(s.ctx, other.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestFindByIDs() {
	a := s.insert(id.KindDefault, "a@example.com", nil)
	b := s.insert(id.KindDefault, "b@example.com", nil)

	found, err := s.store.FindByIDs(s.ctx, []id.PrincipalID{a.ID, id.NewPrincipalID(), b.ID})
	s.Require().NoError(err)
	s.Len(found, 2)

	found, err = s.store.FindByIDs(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *PostgresStoreSuite) TestFindMatching() {
	cutoff := s.now.AddDate(0, 0, -30)
	staleAt := cutoff.AddDate(0, 0, -2)
	freshAt := s.now.AddDate(0, 0, -1)

	never := s.insert(id.KindDefault, "never@example.com", nil)
	stale := s.insert(id.KindDefault, "stale@example.com", &staleAt)
	boundary := s.insert(id.KindDefault, "boundary@example.com", &cutoff)
	s.insert(id.KindDefault, "fresh@example.com", &freshAt)
	s.insert(id.KindDefault, "other@elsewhere.org", nil)

	s.Run("expired verification query", func() {
		found, err := s.store.FindMatching(s.ctx, principal.VerificationExpiredQuery(cutoff))
		s.Require().NoError(err)

		ids := make(map[id.PrincipalID]struct{}, len(found))
		for _, p := range found {
			ids[p.ID] = struct{}{}
		}
		s.Contains(ids, never.ID)
		s.Contains(ids, stale.ID)
		// Verified exactly at the cutoff counts as expired.
		s.Contains(ids, boundary.ID)
		s.Len(found, 4)
	})

	s.Run("domain filter", func() {
		found, err := s.store.FindMatching(s.ctx, principal.Query{Unverified: true, EmailDomain: "elsewhere.org"})
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal("other@elsewhere.org", found[0].Email)
	})

	s.Run("listings are ordered by email", func() {
		all, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(all, 5)
		for i := 1; i < len(all); i++ {
			s.LessOrEqual(all[i-1].Email, all[i].Email)
		}
	})
}

func (s *PostgresStoreSuite) TestSave() {
	s.Run("writes only the verification timestamp", func() {
		p := s.insert(id.KindDefault, "a@example.com", nil)

		verifiedAt := s.now
		p.MarkVerified(verifiedAt)
		p.Email = "ignored@example.com"
		s.Require().NoError(s.store.Save(s.ctx, p))

		got, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().NotNil(got.LastVerifiedAt)
		s.True(got.LastVerifiedAt.Equal(verifiedAt))
		s.Equal("a@example.com", got.Email)
	})

	s.Run("clearing persists as NULL", func() {
		verifiedAt := s.now
		p := s.insert(id.KindDefault, "b@example.com", &verifiedAt)

		p.ClearVerification()
		s.Require().NoError(s.store.Save(s.ctx, p))

		got, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Nil(got.LastVerifiedAt)
	})

	s.Run("unknown principal", func() {
		ghost := &principal.Principal{ID: id.NewPrincipalID(), Kind: id.KindDefault}
		s.Require().ErrorIs(s.store.Save(s.ctx, ghost), sentinel.ErrNotFound)
	})
}
