// Package notify defines the outbound notification boundary. Vigil decides
// *that* a notification must go out; delivery is a collaborator's concern and
// failures on this boundary are theirs to retry.
package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"vigil/internal/principal"
	"vigil/pkg/email"
)

// Sender delivers credential-hygiene notifications. Fire-and-forget from the
// core's perspective.
type Sender interface {
	SendVerificationNotification(ctx context.Context, p *principal.Principal) error
	SendPasswordResetNotification(ctx context.Context, p *principal.Principal, token string) error
}

// resetTokenLength matches the opaque token size the surrounding identity
// system expects on its reset links.
const resetTokenLength = 60

// NewResetToken generates an opaque reset token.
func NewResetToken() string {
	buf := make([]byte, resetTokenLength/2)
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// LogSender is the in-repo Sender: it records the send decision in the logs
// and leaves delivery to whatever ships logs downstream. Production wires a
// real mail collaborator in its place.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationNotification(ctx context.Context, p *principal.Principal) error {
	first, _ := email.DeriveNameFromEmail(p.Email)
	s.logger.InfoContext(ctx, "verification notification requested",
		"principal_id", p.ID,
		"principal_kind", p.Kind,
		"email", email.Mask(p.Email),
		"greeting", first,
	)
	return nil
}

func (s *LogSender) SendPasswordResetNotification(ctx context.Context, p *principal.Principal, token string) error {
	first, _ := email.DeriveNameFromEmail(p.Email)
	s.logger.InfoContext(ctx, "password reset notification requested",
		"principal_id", p.ID,
		"principal_kind", p.Kind,
		"email", email.Mask(p.Email),
		"greeting", first,
		"token_length", len(token),
	)
	return nil
}
