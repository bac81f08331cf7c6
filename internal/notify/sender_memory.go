package notify

import (
	"context"
	"sync"

	"vigil/internal/principal"
	id "vigil/pkg/domain"
)

// Send captures one notification request for test assertions.
type Send struct {
	Type        string // "verification" or "password_reset"
	PrincipalID id.PrincipalID
	Email       string
	Token       string
}

// MemorySender records sends in memory. Test double in the same spirit as the
// in-memory stores; FailFor makes a specific principal's sends fail to
// exercise partial-failure paths.
type MemorySender struct {
	mu      sync.Mutex
	sends   []Send
	failFor map[id.PrincipalID]error
}

func NewMemorySender() *MemorySender {
	return &MemorySender{failFor: make(map[id.PrincipalID]error)}
}

// FailFor makes every send for the given principal return err.
func (s *MemorySender) FailFor(pid id.PrincipalID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[pid] = err
}

func (s *MemorySender) SendVerificationNotification(_ context.Context, p *principal.Principal) error {
	return s.record(Send{Type: "verification", PrincipalID: p.ID, Email: p.Email})
}

func (s *MemorySender) SendPasswordResetNotification(_ context.Context, p *principal.Principal, token string) error {
	return s.record(Send{Type: "password_reset", PrincipalID: p.ID, Email: p.Email, Token: token})
}

func (s *MemorySender) record(send Send) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[send.PrincipalID]; ok {
		return err
	}
	s.sends = append(s.sends, send)
	return nil
}

// Sends returns a copy of everything recorded so far.
func (s *MemorySender) Sends() []Send {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Send, len(s.sends))
	copy(out, s.sends)
	return out
}

// OfType filters recorded sends by type.
func (s *MemorySender) OfType(sendType string) []Send {
	var out []Send
	for _, send := range s.Sends() {
		if send.Type == sendType {
			out = append(out, send)
		}
	}
	return out
}
