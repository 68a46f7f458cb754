package convert

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Placeholders protect domain-specific markup from the generic markdown
// parser. The token format uses the SUB control character as a delimiter plus
// a monotonic counter: valid markdown cannot produce a SUB byte, and the
// parser passes it through untouched, so tokens can never collide with
// parser-generated output.

const listSplitMarker = "\x1alistsplit\x1a"

type substitution struct {
	placeholder string
	replacement string
}

// protector records extract-protect-restore substitutions in insertion order.
type protector struct {
	subs []substitution
}

func (p *protector) protect(replacement string) string {
	ph := fmt.Sprintf("\x1aph%d\x1a", len(p.subs))
	p.subs = append(p.subs, substitution{placeholder: ph, replacement: replacement})
	return ph
}

// restore replaces every recorded placeholder exactly once, in insertion
// order. This runs before entity decoding so the replacement HTML is never
// itself re-interpreted.
func (p *protector) restore(s string) string {
	for _, sub := range p.subs {
		s = strings.Replace(s, sub.placeholder, sub.replacement, 1)
	}
	return s
}

var (
	profileLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(https://app\.asana\.com/0/profile/(\d+)/?\)`)
	bareProfileRe = regexp.MustCompile(`https://app\.asana\.com/0/profile/(\d+)`)
)

// protectMentions rewrites user-profile links into mention placeholders
// before the generic parse. Markdown links with a profile target become named
// mentions; bare profile URLs become empty-bodied mentions (Asana fills in
// the display name at render time). Task and project URLs are left for the
// parser's autolink pass.
func protectMentions(md string, p *protector) string {
	md = profileLinkRe.ReplaceAllStringFunc(md, func(m string) string {
		parts := profileLinkRe.FindStringSubmatch(m)
		name := strings.TrimPrefix(parts[1], "@")
		repl := fmt.Sprintf(`<a data-asana-gid=%q>%s</a>`, parts[2], html.EscapeString(name))
		return p.protect(repl)
	})
	locs := bareProfileRe.FindAllStringSubmatchIndex(md, -1)
	if locs == nil {
		return md
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		// A profile URL sitting in a markdown link destination belongs to
		// that link (the named-mention pass already took the mention cases);
		// splicing a placeholder into the target would corrupt the anchor.
		if insideLinkTarget(md[:start]) {
			continue
		}
		b.WriteString(md[last:start])
		b.WriteString(p.protect(fmt.Sprintf(`<a data-asana-gid=%q></a>`, md[loc[2]:loc[3]])))
		last = end
	}
	b.WriteString(md[last:])
	return b.String()
}

// insideLinkTarget reports whether text continuing right after prefix would
// sit in a markdown link destination, covering both the plain `](dest)` and
// the angle-bracketed `](<dest>)` forms.
func insideLinkTarget(prefix string) bool {
	return strings.HasSuffix(prefix, "](") || strings.HasSuffix(prefix, "](<")
}

var listItemRe = regexp.MustCompile(`^ {0,3}(?:[-*+]|\d{1,9}[.)])\s`)

// markListSplits inserts a marker paragraph between adjacent top-level list
// items separated by a blank line. The destination format collapses blank
// lines, so without the marker the grouping intent of the source would be
// lost; the marker forces the parser to emit separate list blocks, and a
// later stage reduces it to a single newline.
func markListSplits(md string) string {
	lines := strings.Split(md, "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		out = append(out, lines[i])
		if !listItemRe.MatchString(lines[i]) {
			continue
		}
		// Look across a run of blank lines for the next list item.
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j > i+1 && j < len(lines) && listItemRe.MatchString(lines[j]) {
			out = append(out, "", listSplitMarker, "")
			i = j - 1
		}
	}
	return strings.Join(out, "\n")
}
