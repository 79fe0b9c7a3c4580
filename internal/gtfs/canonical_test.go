package gtfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"12", "12"},
		{" 12 ", "12"},
		{"12.0", "12"},
		{"12.000", "12"},
		{"-3.0", "-3"},
		{"12.5", "12.5"},
		{"R1", "R1"},
		{"1.2.3", "1.2.3"},
		{"007", "007"},
		{"", ""},
		{"1e20.0", "1e20.0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalID(tt.in))
		})
	}
}

func TestNormalizeCity(t *testing.T) {
	city, err := NormalizeCity(" Hyderabad ")
	require.NoError(t, err)
	assert.Equal(t, "hyderabad", city)

	city, err = NormalizeCity("new_delhi-2")
	require.NoError(t, err)
	assert.Equal(t, "new_delhi-2", city)

	for _, bad := range []string{"", "..", "a/b", `a\b`, "São Paulo"} {
		_, err := NormalizeCity(bad)
		assert.ErrorIs(t, err, ErrInvalidCity, bad)
	}
}
