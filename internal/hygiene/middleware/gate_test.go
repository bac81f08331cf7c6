package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/hygiene"
	"vigil/internal/ledger"
	"vigil/internal/notify"
	"vigil/internal/policy"
	"vigil/internal/principal"
	"vigil/internal/routes"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/testutil"
)

// failingLedger makes every append fail, to exercise the fail-closed path.
type failingLedger struct {
	*ledger.InMemoryStore
}

func (f *failingLedger) Append(context.Context, *ledger.Record) (*ledger.Record, error) {
	return nil, errors.New("ledger unavailable")
}

type GateSuite struct {
	suite.Suite
	users   *principal.InMemoryStore
	ledger  *ledger.InMemoryStore
	sender  *notify.MemorySender
	service *hygiene.Service
	gate    *Gate
	now     time.Time
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.users = principal.NewInMemoryStore(id.KindDefault)
	s.ledger = ledger.NewInMemoryStore()
	s.sender = notify.NewMemorySender()
	s.service = s.buildService(s.ledger)

	var err error
	s.gate, err = New(s.service, routes.VerificationNotice, routes.RequiredExemptions)
	s.Require().NoError(err)

	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *GateSuite) buildService(store ledger.Store) *hygiene.Service {
	registry, err := principal.NewRegistry(id.KindDefault, s.users)
	s.Require().NoError(err)
	pol, err := policy.New(store)
	s.Require().NoError(err)
	service, err := hygiene.New(registry, store, pol, s.sender)
	s.Require().NoError(err)
	return service
}

func (s *GateSuite) seedUser(verifiedAt *time.Time) *principal.Principal {
	p := &principal.Principal{
		ID:             id.NewPrincipalID(),
		Kind:           id.KindDefault,
		Email:          "person@example.com",
		LastVerifiedAt: verifiedAt,
	}
	s.Require().NoError(s.users.Save(context.Background(), p))
	return p
}

func (s *GateSuite) freshPassword(p *principal.Principal) {
	kind, pid := p.Subject()
	changedAt := s.now.AddDate(0, 0, -1)
	record := ledger.NewPasswordChange(
		ledger.Subject{Kind: kind, ID: pid}, p.Email, changedAt,
		ledger.SelfTrigger(), hygiene.ReasonPasswordResetCompleted,
	)
	_, err := s.ledger.Append(context.Background(), record)
	s.Require().NoError(err)
}

// do sends a request through the gate wrapping a sentinel 200 handler.
func (s *GateSuite) do(g *Gate, routeName string, req *http.Request) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return testutil.DoRequest(g.Enforce(routeName)(next), req)
}

func (s *GateSuite) jsonRequest(p *principal.Principal) *http.Request {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/dashboard")
	req.Header.Set("Accept", "application/json")
	if p != nil {
		req = testutil.WithPrincipal(req, p.Kind, p.ID)
	}
	return testutil.WithTime(req, s.now)
}

func (s *GateSuite) records(p *principal.Principal) []*ledger.Record {
	kind, pid := p.Subject()
	records, err := s.ledger.ListBySubject(context.Background(),
		ledger.Subject{Kind: kind, ID: pid}, ledger.Filter{})
	s.Require().NoError(err)
	return records
}

func (s *GateSuite) TestAllowPaths() {
	s.Run("unauthenticated requests pass untouched", func() {
		rr := s.do(s.gate, "", s.jsonRequest(nil))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("exempt routes pass even for an expired principal", func() {
		p := s.seedUser(nil)
		rr := s.do(s.gate, routes.VerificationNotice, s.jsonRequest(p))
		s.Equal(http.StatusOK, rr.Code)
		s.Empty(s.records(p))
	})

	s.Run("healthy principal passes with no side effects", func() {
		verifiedAt := s.now.AddDate(0, 0, -1)
		p := s.seedUser(&verifiedAt)
		s.freshPassword(p)

		rr := s.do(s.gate, "", s.jsonRequest(p))
		s.Equal(http.StatusOK, rr.Code)
		// The enforcement pass leaves no trace beyond the seeded record.
		s.Len(s.records(p), 1)
		s.Empty(s.sender.Sends())
	})
}

func (s *GateSuite) TestDenyExpiredVerification() {
	p := s.seedUser(nil)
	s.freshPassword(p)

	rr := s.do(s.gate, "", s.jsonRequest(p))
	s.Equal(http.StatusForbidden, rr.Code)

	resp := testutil.UnmarshalResponse[struct {
		Message string   `json:"message"`
		Details []string `json:"details"`
	}](s.T(), rr)
	s.Equal("Verification required", resp.Message)
	s.Equal([]string{hygiene.MsgVerificationExpired}, resp.Details)

	records := s.records(p)
	s.Require().Len(records, 2)
	detection := records[0]
	s.Equal("note", detection.Kind())
	s.Equal(hygiene.ReasonVerificationExpired, detection.Reason)
	s.True(detection.Trigger.IsSystem())

	s.Len(s.sender.OfType("verification"), 1)
}

func (s *GateSuite) TestDenyExpiredPassword() {
	verifiedAt := s.now.AddDate(0, 0, -1)
	p := s.seedUser(&verifiedAt)

	rr := s.do(s.gate, "", s.jsonRequest(p))
	s.Equal(http.StatusForbidden, rr.Code)

	resp := testutil.UnmarshalResponse[struct {
		Details []string `json:"details"`
	}](s.T(), rr)
	s.Equal([]string{hygiene.MsgPasswordExpired}, resp.Details)

	records := s.records(p)
	s.Require().Len(records, 1)
	s.Equal(hygiene.ReasonPasswordExpired, records[0].Reason)

	// Only the verification path notifies; password recovery is pulled by
	// the principal through the reset flow.
	s.Empty(s.sender.OfType("verification"))
}

func (s *GateSuite) TestDenyBothExpired() {
	p := s.seedUser(nil)

	rr := s.do(s.gate, "", s.jsonRequest(p))
	s.Equal(http.StatusForbidden, rr.Code)

	resp := testutil.UnmarshalResponse[struct {
		Details []string `json:"details"`
	}](s.T(), rr)
	s.Equal([]string{hygiene.MsgVerificationExpired, hygiene.MsgPasswordExpired}, resp.Details)
	s.Len(s.records(p), 2)
}

func (s *GateSuite) TestDenyRedirectsBrowsers() {
	p := s.seedUser(nil)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/dashboard")
	req.Header.Set("Accept", "text/html")
	req = testutil.WithPrincipal(req, p.Kind, p.ID)
	req = testutil.WithTime(req, s.now)

	rr := s.do(s.gate, "", req)
	s.Equal(http.StatusSeeOther, rr.Code)
	s.Equal("/verification/notice", rr.Header().Get("Location"))

	var flash *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "vigil_messages" {
			flash = c
		}
	}
	s.Require().NotNil(flash, "deny must set the flash cookie")
	s.NotEmpty(flash.Value)
}

func (s *GateSuite) TestFailClosed() {
	s.Run("unloadable principal is denied", func() {
		ghost := &principal.Principal{ID: id.NewPrincipalID(), Kind: id.KindDefault}
		rr := s.do(s.gate, "", s.jsonRequest(ghost))
		s.Equal(http.StatusInternalServerError, rr.Code)
	})

	s.Run("audit failure denies the request", func() {
		failing := &failingLedger{InMemoryStore: ledger.NewInMemoryStore()}
		service := s.buildService(failing)
		gate, err := New(service, routes.VerificationNotice, routes.RequiredExemptions)
		s.Require().NoError(err)

		p := s.seedUser(nil)
		rr := s.do(gate, "", s.jsonRequest(p))
		s.Equal(http.StatusInternalServerError, rr.Code)
		testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeInternal))
	})
}

func (s *GateSuite) TestNew() {
	s.Run("rejects an unknown redirect route", func() {
		_, err := New(s.service, "no.such.route", routes.RequiredExemptions)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("rejects an exemption set missing a recovery route", func() {
		_, err := New(s.service, routes.VerificationNotice, []string{routes.VerificationNotice})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("rejects an unknown exempt route", func() {
		exempt := append([]string{"no.such.route"}, routes.RequiredExemptions...)
		_, err := New(s.service, routes.VerificationNotice, exempt)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}
