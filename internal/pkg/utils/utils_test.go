package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"10", 1000},
		{"10.5", 1050},
		{"10.50", 1050},
		{" 0.07 ", 7},
		{"-2.5", -250},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"", "1.-5", "1.+5", "+5", "--5", "1.234", "1.", ".5", "1,50", "ten"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			assert.Error(t, err)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.00", FormatAmount(1000))
	assert.Equal(t, "0.07", FormatAmount(7))
	assert.Equal(t, "-2.50", FormatAmount(-250))
}
