package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain digits", "628123456789", "628123456789"},
		{"plus prefix", "+628123456789", "628123456789"},
		{"formatted", "+62 812-3456-789", "628123456789"},
		{"jid suffix", "628123456789@s.whatsapp.net", "628123456789"},
		{"letters only", "not-a-number", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{"+62 812-3456-789", "abc123def456ghi789jk0", "628123456789"}
	for _, input := range inputs {
		once := Sanitize(input)
		assert.Equal(t, once, Sanitize(once), "sanitizing twice must be a no-op for %q", input)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"ten digits", "6281234567", false},
		{"fifteen digits", "628123456789012", false},
		{"nine digits", "628123456", true},
		{"sixteen digits", "6281234567890123", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeAndValidate(t *testing.T) {
	number, err := SanitizeAndValidate("+62 812-3456-789")
	require.NoError(t, err)
	assert.Equal(t, "628123456789", number)

	_, err = SanitizeAndValidate("12345")
	assert.Error(t, err)

	_, err = SanitizeAndValidate("garbage")
	assert.Error(t, err)
}
