package principal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

func TestNewRegistry(t *testing.T) {
	t.Run("requires at least one store", func(t *testing.T) {
		_, err := NewRegistry(id.KindDefault)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("rejects a store with an empty kind", func(t *testing.T) {
		_, err := NewRegistry(id.KindDefault, NewInMemoryStore(""))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("rejects duplicate kinds", func(t *testing.T) {
		_, err := NewRegistry(id.KindDefault,
			NewInMemoryStore(id.KindDefault),
			NewInMemoryStore(id.KindDefault),
		)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("requires a store for the default kind", func(t *testing.T) {
		_, err := NewRegistry(id.KindDefault, NewInMemoryStore("admin"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}

func TestRegistryFor(t *testing.T) {
	users := NewInMemoryStore(id.KindDefault)
	admins := NewInMemoryStore("admin")
	registry, err := NewRegistry(id.KindDefault, users, admins)
	require.NoError(t, err)

	t.Run("resolves by kind", func(t *testing.T) {
		store, err := registry.For("admin")
		require.NoError(t, err)
		assert.Equal(t, id.PrincipalKind("admin"), store.Kind())
	})

	t.Run("empty kind selects the default", func(t *testing.T) {
		store, err := registry.For("")
		require.NoError(t, err)
		assert.Equal(t, id.KindDefault, store.Kind())
	})

	t.Run("unknown kind is a configuration error", func(t *testing.T) {
		_, err := registry.For("service")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("kinds lists every registered kind", func(t *testing.T) {
		assert.ElementsMatch(t,
			[]id.PrincipalKind{id.KindDefault, "admin"},
			registry.Kinds(),
		)
	})
}
