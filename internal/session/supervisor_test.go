package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
		want    CloseClass
	}{
		{"unauthorized", 401, "", CloseTerminal},
		{"forbidden", 403, "", CloseTerminal},
		{"request timeout", 408, "", CloseBenign},
		{"logged out message", 0, "client logged out", CloseTerminal},
		{"unlinked message", 0, "device was unlinked", CloseTerminal},
		{"qr window lapsed", 0, "QR refs attempts ended", CloseBenign},
		{"pairing window lapsed", 0, "pairing timed out", CloseBenign},
		{"stream error", 515, "stream error", CloseUnexpected},
		{"no information", 0, "", CloseUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code, tt.message))
		})
	}
}
