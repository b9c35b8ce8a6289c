package fips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountyCount(t *testing.T) {
	assert.Len(t, Counties, 62)
}

func TestCountyCode(t *testing.T) {
	cases := map[string]int{
		"Albany":         1,
		"Bronx":          5,
		"Kings":          47,
		"Nassau":         59,
		"New York":       61,
		"Queens":         81,
		"Richmond":       85,
		"St. Lawrence":   89,
		"Saint Lawrence": 89,
		"Suffolk County": 103,
		"westchester":    119,
		"Yates":          123,
	}
	for name, want := range cases {
		got, err := CountyCode(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := CountyCode("Atlantis")
	require.Error(t, err)
}

func TestCountyNameRoundTrip(t *testing.T) {
	for _, c := range Counties {
		code, err := CountyCode(c)
		require.NoError(t, err)
		name, err := CountyName(code)
		require.NoError(t, err)
		assert.Equal(t, c, name)
	}
	_, err := CountyName(2)
	require.Error(t, err)
	_, err = CountyName(125)
	require.Error(t, err)
}

func TestVoterFileCounty(t *testing.T) {
	name, err := VoterFileCounty(30)
	require.NoError(t, err)
	assert.Equal(t, "Nassau", name)

	name, err = VoterFileCounty(52)
	require.NoError(t, err)
	assert.Equal(t, "Suffolk", name)

	_, err = VoterFileCounty(0)
	require.Error(t, err)
}

func TestCanonical(t *testing.T) {
	got, ok := Canonical("NEW YORK")
	require.True(t, ok)
	assert.Equal(t, "New York", got)

	got, ok = Canonical("St Lawrence")
	require.True(t, ok)
	assert.Equal(t, "St. Lawrence", got)
}
