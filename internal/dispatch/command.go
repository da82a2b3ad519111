package dispatch

import (
	"strings"
)

// ParseCommand splits prefixed text into a lowercase command word and its
// arguments. A bare prefix is not a command.
func ParseCommand(text string, prefix string) (bool, string, []string) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return false, "", nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	if rest == "" {
		return false, "", nil
	}
	fields := strings.Fields(rest)
	return true, strings.ToLower(fields[0]), fields[1:]
}

// RenderTemplate substitutes the @user and @group placeholders of welcome and
// goodbye messages.
func RenderTemplate(template string, user string, group string) string {
	out := strings.ReplaceAll(template, "@user", user)
	return strings.ReplaceAll(out, "@group", group)
}
