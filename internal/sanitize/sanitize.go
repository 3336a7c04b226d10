package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxButtonLabel is the number of runes kept in an inline button label.
const MaxButtonLabel = 40

// StripControlChars removes non-printable control characters except newline and tab.
// Rules, welcome messages and descriptions are admin-supplied and pass through here
// before they are stored.
func StripControlChars(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	for _, r := range s {
		if r == '\n' || r == '\t' {
			builder.WriteRune(r)
			continue
		}
		if r == '\r' || unicode.IsControl(r) {
			continue
		}
		builder.WriteRune(r)
	}

	return builder.String()
}

// UserText cleans free-form text supplied by a chat admin.
func UserText(s string) string {
	return strings.TrimSpace(StripControlChars(s))
}

// ButtonLabel renders a chat title for an inline keyboard button: one line,
// no control characters, truncated with an ellipsis.
func ButtonLabel(s string) string {
	s = strings.Join(strings.Fields(StripControlChars(s)), " ")
	if s == "" {
		return "(untitled)"
	}
	if utf8.RuneCountInString(s) <= MaxButtonLabel {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxButtonLabel-1]) + "…"
}

// Mention renders a user for a plain-text message: "@username" when one is
// set, otherwise the display name.
func Mention(username, displayName string) string {
	if username != "" {
		return "@" + username
	}
	if displayName = strings.TrimSpace(StripControlChars(displayName)); displayName != "" {
		return displayName
	}
	return "someone"
}
