package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-reserved characters with underscores.
var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// separatorCutset lists characters trimmed from both ends of a sanitized name.
const separatorCutset = " ._-"

// SanitizeFileName makes name safe for use as a path segment. Unicode is
// normalized to NFC, reserved characters become underscores, whitespace and
// underscore runs collapse to a single character, and leading or trailing
// separators are trimmed. Sanitizing a sanitized name is a no-op.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	name = fileNameReplacer.Replace(name)

	// The cap is always sufficient because every pass shortens the string.
	limit := len(name) + 1
	name, _ = CollapseRepeats(name, " ", limit)
	name, _ = CollapseRepeats(name, "_", limit)
	return strings.Trim(name, separatorCutset)
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
