package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vigil/pkg/domain-errors"
)

func TestPathOf(t *testing.T) {
	path, err := PathOf(VerificationNotice)
	require.NoError(t, err)
	assert.Equal(t, "/verification/notice", path)

	_, err = PathOf("no.such.route")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestRequiredExemptionsResolve(t *testing.T) {
	// Every required exemption must be a known route, or gate construction
	// could never succeed.
	for _, name := range RequiredExemptions {
		_, err := PathOf(name)
		assert.NoError(t, err, "route %q", name)
	}
}
