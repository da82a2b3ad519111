package whatsapp

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// ComposeJID turns an external identifier (number, group id, full JID) into a
// transport JID. Identifiers with a dash or more than 15 digits are groups.
func ComposeJID(id string) types.JID {
	if strings.ContainsRune(id, '@') {
		if parsed, err := types.ParseJID(id); err == nil && parsed.User != "" {
			return parsed
		}
	}

	id = DecomposeJID(id)

	if strings.ContainsRune(id, '-') || len(id) > 15 {
		return types.NewJID(id, types.GroupServer)
	}
	return types.NewJID(id, types.DefaultUserServer)
}

// DecomposeJID strips any server suffix and leading plus sign.
func DecomposeJID(id string) string {
	if strings.ContainsRune(id, '@') {
		id = strings.SplitN(id, "@", 2)[0]
	}
	if strings.ContainsRune(id, ':') {
		id = strings.SplitN(id, ":", 2)[0]
	}
	return strings.TrimPrefix(id, "+")
}

// MaskJID hides the middle of an identifier in log output.
func MaskJID(jid string) string {
	user := DecomposeJID(jid)
	if len(user) <= 6 {
		return "***"
	}
	return user[:4] + strings.Repeat("*", len(user)-6) + user[len(user)-2:]
}
