package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vigil/pkg/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30, cfg.Hygiene.VerificationExpiryDays)
	assert.Equal(t, 30, cfg.Hygiene.PasswordExpiryDays)
	assert.Equal(t, "verification.notice", cfg.Hygiene.RedirectRoute)
	assert.Equal(t, id.KindDefault, cfg.DefaultKind())
	assert.Empty(t, cfg.Database.DSN)
	assert.NotEmpty(t, cfg.Auth.AdminToken)
	assert.Len(t, cfg.ExemptRouteSet(), 7)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VIGIL_ADDR", ":9090")
	t.Setenv("VERIFICATION_EXPIRY_DAYS", "7")
	t.Setenv("PASSWORD_EXPIRY_DAYS", "90")
	t.Setenv("VIGIL_DEFAULT_PRINCIPAL_KIND", "member")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Hygiene.VerificationExpiryDays)
	assert.Equal(t, 90, cfg.Hygiene.PasswordExpiryDays)
	assert.Equal(t, id.PrincipalKind("member"), cfg.DefaultKind())
}

func TestValidate(t *testing.T) {
	t.Run("rejects non-positive windows", func(t *testing.T) {
		t.Setenv("VERIFICATION_EXPIRY_DAYS", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects an unknown redirect route", func(t *testing.T) {
		t.Setenv("VIGIL_REDIRECT_ROUTE", "no.such.route")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects an unknown exempt route", func(t *testing.T) {
		t.Setenv("VIGIL_EXEMPT_ROUTES", "verification.notice,verification.verify,verification.send,password.request,password.reset,password.update,logout,no.such.route")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("requires every recovery route to stay exempt", func(t *testing.T) {
		t.Setenv("VIGIL_EXEMPT_ROUTES", "verification.notice,logout")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects a blank admin token", func(t *testing.T) {
		t.Setenv("VIGIL_ADMIN_TOKEN", "  ")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("trims and skips empty entries", func(t *testing.T) {
		t.Setenv("VIGIL_EXEMPT_ROUTES", " verification.notice , verification.verify, verification.send,password.request,password.reset,password.update,logout, ")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Len(t, cfg.ExemptRouteSet(), 7)
	})
}
