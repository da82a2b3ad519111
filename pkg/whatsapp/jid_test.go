package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.mau.fi/whatsmeow/types"
)

func TestComposeJID(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantUser   string
		wantServer string
	}{
		{"plain number", "628123456789", "628123456789", types.DefaultUserServer},
		{"plus prefix", "+628123456789", "628123456789", types.DefaultUserServer},
		{"full jid", "628123456789@s.whatsapp.net", "628123456789", types.DefaultUserServer},
		{"legacy group id", "628123456789-1631537489", "628123456789-1631537489", types.GroupServer},
		{"long group id", "120363021033254949", "120363021033254949", types.GroupServer},
		{"group jid", "120363021033254949@g.us", "120363021033254949", types.GroupServer},
		{"device suffix", "628123456789:12", "628123456789", types.DefaultUserServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jid := ComposeJID(tt.input)
			assert.Equal(t, tt.wantUser, jid.User)
			assert.Equal(t, tt.wantServer, jid.Server)
		})
	}
}

func TestDecomposeJID(t *testing.T) {
	assert.Equal(t, "628123456789", DecomposeJID("628123456789@s.whatsapp.net"))
	assert.Equal(t, "628123456789", DecomposeJID("628123456789:12@s.whatsapp.net"))
	assert.Equal(t, "628123456789", DecomposeJID("+628123456789"))
	assert.Equal(t, "628123456789", DecomposeJID("628123456789"))
}

func TestMaskJID(t *testing.T) {
	assert.Equal(t, "6281******89", MaskJID("628123456789"))
	assert.Equal(t, "6281******89", MaskJID("628123456789@s.whatsapp.net"))
	assert.Equal(t, "***", MaskJID("12345"))
	assert.Equal(t, "***", MaskJID(""))
}
