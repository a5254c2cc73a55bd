package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level string

const (
	levelLow  level = "low"
	levelHigh level = "high"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(map[string]level{"Low": levelLow, "high": levelHigh}, levelLow)

	tests := []struct {
		in   string
		want level
	}{
		{"low", levelLow},
		{"  HIGH ", levelHigh},
		{"unknown", levelLow},
		{"", levelLow},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizer_NormalizeWithError(t *testing.T) {
	n := NewNormalizer(map[string]level{"low": levelLow, "high": levelHigh}, levelLow)

	v, err := n.NormalizeWithError("High")
	require.NoError(t, err)
	assert.Equal(t, levelHigh, v)

	_, err = n.NormalizeWithError("medium")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[high low]")
	assert.Equal(t, []string{"high", "low"}, n.ValidKeys())
}
