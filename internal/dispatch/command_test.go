package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		prefix   string
		want     bool
		wantWord string
		wantArgs []string
	}{
		{"simple command", ".ping", ".", true, "ping", []string{}},
		{"command with args", ".set ANTI_CALL true", ".", true, "set", []string{"ANTI_CALL", "true"}},
		{"uppercase word lowered", ".PING", ".", true, "ping", []string{}},
		{"prefix with space", ". ping", ".", true, "ping", []string{}},
		{"bare prefix", ".", ".", false, "", nil},
		{"prefix and spaces only", ".   ", ".", false, "", nil},
		{"no prefix", "ping", ".", false, "", nil},
		{"different prefix", "!ping", ".", false, "", nil},
		{"empty prefix", "ping", "", false, "", nil},
		{"plain text", "hello there", ".", false, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, word, args := ParseCommand(tt.text, tt.prefix)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWord, word)
			if tt.want {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Welcome @user to @group!", "@628123456789", "Demo Group")
	assert.Equal(t, "Welcome @628123456789 to Demo Group!", out)

	out = RenderTemplate("Goodbye @user", "@628123456789", "")
	assert.Equal(t, "Goodbye @628123456789", out)

	out = RenderTemplate("no placeholders", "@x", "y")
	assert.Equal(t, "no placeholders", out)
}
