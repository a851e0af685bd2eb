package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrincipal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Principal
		wantErr  bool
	}{
		{
			name:     "checksummed address is lowered",
			input:    "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			expected: "0x5fbdb2315678afecb367f032d93f642f64180aa3",
		},
		{
			name:     "plain identifier",
			input:    "seller-1",
			expected: "seller-1",
		},
		{
			name:     "trimmed",
			input:    "  alice ",
			expected: "alice",
		},
		{name: "empty", input: "", wantErr: true},
		{name: "short address", input: "0x1234", wantErr: true},
		{name: "non hex address", input: "0xZZbDB2315678afecb367f032d93F642f64180aa3", wantErr: true},
		{name: "inner whitespace", input: "a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPrincipal(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestPrincipalEquality(t *testing.T) {
	a := MustNewPrincipal("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	b := MustNewPrincipal("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	assert.Equal(t, a, b)
	assert.Equal(t, "0x5fbd...0aa3", a.Short())
	assert.False(t, a.IsZero())
}
