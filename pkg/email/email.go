// Package email derives display values from email addresses.
package email

import (
	"strings"
	"unicode"
)

// GreetingName guesses a display name from an address whose local part
// looks like "first.last" (also "_", "-" separated). Anything else,
// including single-token local parts and role accounts, yields "".
func GreetingName(addr string) string {
	local := strings.TrimSpace(addr)
	if at := strings.IndexByte(local, '@'); at > 0 {
		local = local[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) < 2 {
		return ""
	}
	for i, p := range parts {
		if !isWord(p) {
			return ""
		}
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func isWord(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 1
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
