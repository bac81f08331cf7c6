package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vigil/pkg/domain"
)

func TestTrigger(t *testing.T) {
	pid := id.NewPrincipalID()

	t.Run("zero value is no trigger", func(t *testing.T) {
		var trigger Trigger
		assert.True(t, trigger.IsZero())
		assert.False(t, trigger.IsSystem())
		assert.False(t, trigger.IsSelf())
		assert.Equal(t, "", trigger.String())
		_, ok := trigger.Principal()
		assert.False(t, ok)
	})

	t.Run("system trigger renders its sentinel", func(t *testing.T) {
		trigger := SystemTrigger()
		assert.True(t, trigger.IsSystem())
		assert.Equal(t, "system", trigger.String())
	})

	t.Run("self trigger renders its sentinel", func(t *testing.T) {
		trigger := SelfTrigger()
		assert.True(t, trigger.IsSelf())
		assert.Equal(t, "user", trigger.String())
	})

	t.Run("principal trigger carries kind and id", func(t *testing.T) {
		trigger := PrincipalTrigger("admin", pid)
		assert.False(t, trigger.IsZero())
		subject, ok := trigger.Principal()
		require.True(t, ok)
		assert.Equal(t, id.PrincipalKind("admin"), subject.Kind)
		assert.Equal(t, pid, subject.ID)
		assert.Equal(t, pid.String(), trigger.String())
	})

	t.Run("round trips through column values", func(t *testing.T) {
		cases := []Trigger{
			SystemTrigger(),
			SelfTrigger(),
			PrincipalTrigger("admin", pid),
		}
		for _, want := range cases {
			by := want.String()
			kind := ""
			if p, ok := want.Principal(); ok {
				kind = string(p.Kind)
			}
			assert.Equal(t, want, triggerFromColumns(by, kind))
		}
	})

	t.Run("unknown column value is no trigger", func(t *testing.T) {
		assert.True(t, triggerFromColumns("", "").IsZero())
		assert.True(t, triggerFromColumns("not-a-uuid", "admin").IsZero())
	})
}

func TestRecordKind(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	subject := Subject{Kind: id.KindDefault, ID: id.NewPrincipalID()}

	note := NewNote(subject, "person@example.com", SystemTrigger(), "Email verification expired")
	assert.Equal(t, "note", note.Kind())

	verification := NewVerification(subject, "person@example.com", now, SelfTrigger(), "Email verification completed")
	assert.Equal(t, "verification", verification.Kind())
	require.NotNil(t, verification.VerifiedAt)
	assert.Equal(t, now, *verification.VerifiedAt)

	change := NewPasswordChange(subject, "person@example.com", now, SelfTrigger(), "Password reset completed")
	assert.Equal(t, "password_change", change.Kind())

	both := NewVerification(subject, "person@example.com", now, SelfTrigger(), "imported")
	both.MarkPasswordChanged(now)
	assert.Equal(t, "verification+password_change", both.Kind())
}

func TestFilter(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	subject := Subject{Kind: id.KindDefault, ID: id.NewPrincipalID()}

	note := NewNote(subject, "person@example.com", SystemTrigger(), "note")
	note.CreatedAt = now.AddDate(0, 0, -10)

	change := NewPasswordChange(subject, "person@example.com", now, SelfTrigger(), "change")
	change.CreatedAt = now

	t.Run("zero filter matches everything", func(t *testing.T) {
		assert.True(t, Filter{}.Matches(note))
		assert.True(t, Filter{}.Matches(change))
	})

	t.Run("since excludes older records", func(t *testing.T) {
		filter := Recent(7, now)
		assert.False(t, filter.Matches(note))
		assert.True(t, filter.Matches(change))
	})

	t.Run("since includes the boundary instant", func(t *testing.T) {
		boundary := NewNote(subject, "person@example.com", NoTrigger(), "")
		boundary.CreatedAt = now.AddDate(0, 0, -7)
		assert.True(t, Recent(7, now).Matches(boundary))
	})

	t.Run("kind flags select by event timestamp", func(t *testing.T) {
		assert.False(t, Filter{PasswordChanges: true}.Matches(note))
		assert.True(t, Filter{PasswordChanges: true}.Matches(change))
		assert.False(t, Filter{Verifications: true}.Matches(change))
	})
}
