package convert

import "strings"

// allowedTags is the set of tag names the Asana rich-text dialect accepts.
// Anything else reaching the sanitizer is structurally neutralized.
var allowedTags = map[string]bool{
	"body":   true,
	"strong": true,
	"em":     true,
	"b":      true,
	"i":      true,
	"u":      true,
	"s":      true,
	"ul":     true,
	"ol":     true,
	"li":     true,
	"pre":    true,
	"code":   true,
	"a":      true,
	"br":     true,
	"hr":     true,
	"h1":     true,
	"h2":     true,
	"table":  true,
	"tr":     true,
	"td":     true,
}

// Sanitize scans s left to right in a single pass. A '<' that begins an
// opening or closing tag from the allowed set is copied through up to and
// including its '>'. Any other '<' is escaped to &lt; and scanning resumes at
// the next character, so the remaining text of an invalid tag is preserved
// rather than dropped. Sanitizing already-sanitized output is a no-op.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); {
		if s[i] != '<' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end, ok := scanAllowedTag(s, i)
		if !ok {
			b.WriteString("&lt;")
			i++
			continue
		}
		b.WriteString(s[i:end])
		i = end
	}
	return b.String()
}

// scanAllowedTag reports whether s[start:] begins a permitted tag, returning
// the index just past its closing '>'.
func scanAllowedTag(s string, start int) (int, bool) {
	i := start + 1
	if i < len(s) && s[i] == '/' {
		i++
	}
	nameStart := i
	for i < len(s) && isTagNameChar(s[i]) {
		i++
	}
	if i == nameStart || i >= len(s) {
		return 0, false
	}
	if !allowedTags[strings.ToLower(s[nameStart:i])] {
		return 0, false
	}
	// Tag name must be delimited by whitespace, '/', or '>'.
	switch s[i] {
	case '>', '/', ' ', '\t', '\n', '\r':
	default:
		return 0, false
	}
	gt := strings.IndexByte(s[i:], '>')
	if gt < 0 {
		return 0, false
	}
	return i + gt + 1, true
}

func isTagNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
