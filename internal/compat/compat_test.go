package compat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bornlite/internal/numlib"
)

func TestAdapterResolvesLegacyNames(t *testing.T) {
	a, err := New(numlib.New(), nil)
	require.NoError(t, err)

	for legacy, canonical := range DefaultAliases() {
		sym, err := a.Resolve(legacy)
		require.NoError(t, err, legacy)
		assert.Equal(t, canonical, sym.Name)
		assert.NotNil(t, sym.Kernel)
	}
}

func TestAdapterPassesThroughCanonicalNames(t *testing.T) {
	a, err := New(numlib.New(), nil)
	require.NoError(t, err)

	sym, err := a.Resolve("math.add")
	require.NoError(t, err)
	assert.Equal(t, "math.add", sym.Name)
}

func TestAdapterUnknownName(t *testing.T) {
	a, err := New(numlib.New(), nil)
	require.NoError(t, err)

	_, err = a.Resolve("tan")
	var unresolved *numlib.UnresolvedError
	assert.True(t, errors.As(err, &unresolved))
}

func TestAdapterExtend(t *testing.T) {
	a, err := New(numlib.New(), map[string]string{"exp": "math.exp"})
	require.NoError(t, err)

	sym, err := a.Resolve("exp")
	require.NoError(t, err)
	assert.Equal(t, "math.exp", sym.Name)
	assert.Len(t, a.Aliases(), len(DefaultAliases())+1)
}

func TestAdapterRejectsUnknownTarget(t *testing.T) {
	_, err := New(numlib.New(), map[string]string{"tan": "math.tan"})
	assert.ErrorContains(t, err, "unknown kernel")
}
