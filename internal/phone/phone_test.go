package phone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw    string
		region string
		want   string
	}{
		{"+14155552671", "US", "+14155552671"},
		{"(415) 555-2671", "US", "+14155552671"},
		{"1-415-555-2671", "US", "+14155552671"},
		{"  415.555.2671 ", "", "+14155552671"},
		{"+44 20 7946 0958", "US", "+442079460958"},
		{"020 7946 0958", "gb", "+442079460958"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.raw, tt.region)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "hello", "12", "+1 555"} {
		_, err := Normalize(raw, "US")
		assert.True(t, errors.Is(err, ErrInvalid), raw)
	}
}
