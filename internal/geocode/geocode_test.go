package geocode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversineKM_SamePointIsZero(t *testing.T) {
	require.InDelta(t, 0, HaversineKM(48.8566, 2.3522, 48.8566, 2.3522), 1e-9)
}

func TestHaversineKM_ParisToLondonRoughDistance(t *testing.T) {
	d := HaversineKM(48.8566, 2.3522, 51.5072, -0.1276)
	require.InDelta(t, 344, d, 10)
}

func TestIndex_ResolveNearestPlace(t *testing.T) {
	idx := NewIndex([]Place{
		{Latitude: 48.8566, Longitude: 2.3522, Country: "France", City: "Paris"},
		{Latitude: 51.5072, Longitude: -0.1276, Country: "UK", City: "London"},
	})

	res, ok := idx.Resolve(48.86, 2.35)
	require.True(t, ok)
	require.Equal(t, "Paris", res.City)
	require.Equal(t, "France", res.Country)
}

func TestIndex_ResolveNoCandidatesNearby(t *testing.T) {
	idx := NewIndex([]Place{
		{Latitude: 48.8566, Longitude: 2.3522, Country: "France", City: "Paris"},
	})

	// far enough away to fall outside the 3x3 cell neighborhood.
	_, ok := idx.Resolve(-33.8688, 151.2093) // Sydney
	require.False(t, ok)
}

func TestIndex_ResolveEmpty(t *testing.T) {
	idx := NewIndex(nil)
	_, ok := idx.Resolve(0, 0)
	require.False(t, ok)
}
