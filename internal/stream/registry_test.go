package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryExplicitLookup(t *testing.T) {
	r := NewRegistry([]string{"XYZ", "ABC"}, false)

	h, ok := r.Lookup("XYZ")
	require.True(t, ok)
	require.Equal(t, "XYZ", h.Name)

	_, ok = r.Lookup("UNKNOWN")
	require.False(t, ok)
}

func TestRegistryCatchAllOnEmptyList(t *testing.T) {
	r := NewRegistry(nil, false)

	h, ok := r.Lookup("ANYTHING")
	require.True(t, ok)
	require.Equal(t, "*", h.Name)
}

func TestRegistryDynamicGrowsOnMiss(t *testing.T) {
	r := NewRegistry([]string{"XYZ"}, true)

	h1, ok := r.Lookup("NEW")
	require.True(t, ok)

	h2, ok := r.Lookup("NEW")
	require.True(t, ok)
	require.Same(t, h1, h2)
}
