// Package slug derives URL-safe identifiers from human-readable titles.
package slug

import "strings"

// Make lower-cases text, maps every non-alphanumeric run to a single hyphen
// and trims leading/trailing hyphens. It is pure and idempotent:
// Make(Make(s)) == Make(s).
func Make(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
