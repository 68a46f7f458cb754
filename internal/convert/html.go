package convert

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

// markdown is the generic parser: GitHub-flavored markdown (autolinks,
// tables, strikethrough) with single newlines rendered as line breaks. Raw
// HTML passes through unsafely here because the sanitizer is the final pass
// and neutralizes anything outside the allowed dialect.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		ghtml.WithHardWraps(),
		ghtml.WithUnsafe(),
	),
)

// stage is one named transformation over the rendered HTML. Stages run in
// order; each one's output invariant is the next one's input invariant.
type stage struct {
	name  string
	apply func(string) string
}

var postStages = []stage{
	{"entity-normalization", decodeEntities},
	{"code-block-flattening", flattenCodeBlocks},
	{"ordered-list-start-strip", stripOrderedListStart},
	{"strike-normalization", normalizeStrike},
	{"table-reshaping", reshapeTables},
	{"line-break-normalization", newlinesForBreaks},
	{"hr-self-closing", selfCloseRules},
	{"heading-downgrade", downgradeHeadings},
	{"paragraph-removal", removeParagraphs},
	{"list-split-marker-removal", removeListSplitMarkers},
	{"whitespace-collapsing", collapseWhitespace},
}

// MarkdownToHTML converts user-authored markdown into the HTML dialect Asana
// accepts for rich-text fields. The result is wrapped in a single <body>
// container; empty input yields an empty string with no container.
func MarkdownToHTML(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil
	}

	p := &protector{}
	pre := protectMentions(source, p)
	pre = markListSplits(pre)

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(pre), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	// Placeholders must come back before any entity or tag rewriting so the
	// restored fragments are never mistaken for parser output.
	out := p.restore(buf.String())
	for _, st := range postStages {
		out = st.apply(out)
	}
	out = Sanitize(out)

	if !strings.HasPrefix(out, "<body>") {
		out = "<body>" + out + "</body>"
	}
	return out, nil
}

// decodeEntities decodes the entities the parser encodes that Asana would
// otherwise double-encode. &lt; &gt; &amp; must stay escaped.
func decodeEntities(s string) string {
	r := strings.NewReplacer(
		"&#39;", "'",
		"&#34;", `"`,
		"&quot;", `"`,
		"&#47;", "/",
	)
	return r.Replace(s)
}

var (
	codeOpenRe  = regexp.MustCompile(`<pre><code[^>]*>`)
	codeCloseRe = regexp.MustCompile(`</code></pre>`)
)

// flattenCodeBlocks unwraps <pre><code class="language-x"> into a bare <pre>
// that directly contains the text, which is the only code-block shape Asana
// accepts.
func flattenCodeBlocks(s string) string {
	s = codeOpenRe.ReplaceAllString(s, "<pre>")
	return codeCloseRe.ReplaceAllString(s, "</pre>")
}

var olStartRe = regexp.MustCompile(`<ol start="\d+">`)

func stripOrderedListStart(s string) string {
	return olStartRe.ReplaceAllString(s, "<ol>")
}

// normalizeStrike rewrites the parser's <del> into <s>, the strike tag the
// destination understands.
func normalizeStrike(s string) string {
	s = strings.ReplaceAll(s, "<del>", "<s>")
	return strings.ReplaceAll(s, "</del>", "</s>")
}

var (
	theadTbodyRe = regexp.MustCompile(`</?t(?:head|body)>\n?`)
	thOpenRe     = regexp.MustCompile(`<th(?:\s[^>]*)?>`)
	tdOpenRe     = regexp.MustCompile(`<td[^>]*>`)
)

// reshapeTables reduces GFM table output to the <table>/<tr>/<td> subset:
// header and body wrappers are removed, header cells become data cells, and
// every cell gets the width attributes Asana's renderer requires.
func reshapeTables(s string) string {
	s = theadTbodyRe.ReplaceAllString(s, "")
	s = thOpenRe.ReplaceAllString(s, "<td>")
	s = strings.ReplaceAll(s, "</th>", "</td>")
	return tdOpenRe.ReplaceAllString(s, `<td width="120" data-cell-widths="120">`)
}

var brRe = regexp.MustCompile(`<br\s*/?>\n?`)

// newlinesForBreaks converts break tags to literal newlines, which Asana
// prefers.
func newlinesForBreaks(s string) string {
	return brRe.ReplaceAllString(s, "\n")
}

var hrRe = regexp.MustCompile(`<hr\s*/?>`)

func selfCloseRules(s string) string {
	return hrRe.ReplaceAllString(s, "<hr/>")
}

var (
	hOpenRe  = regexp.MustCompile(`<h[3-6]>`)
	hCloseRe = regexp.MustCompile(`</h[3-6]>`)
)

// downgradeHeadings maps heading levels 3-6 to level 2; Asana supports only
// two levels.
func downgradeHeadings(s string) string {
	s = hOpenRe.ReplaceAllString(s, "<h2>")
	return hCloseRe.ReplaceAllString(s, "</h2>")
}

// removeParagraphs drops paragraph tags, which Asana rejects. Combined with
// the renderer's own newline after each paragraph, a paragraph close becomes
// a blank line; a paragraph directly after a heading sits on the heading's
// single trailing newline, which is exactly the required spacing.
func removeParagraphs(s string) string {
	s = strings.ReplaceAll(s, "<p>", "")
	return strings.ReplaceAll(s, "</p>", "\n")
}

var listSplitRe = regexp.MustCompile(`\n*` + listSplitMarker + `\n*`)

func removeListSplitMarkers(s string) string {
	return listSplitRe.ReplaceAllString(s, "\n")
}

var (
	manyNewlinesRe    = regexp.MustCompile(`\n{3,}`)
	blankBeforeBlock  = regexp.MustCompile(`\n{2,}(<(?:ul|ol|pre)>)`)
	blankAfterBlock   = regexp.MustCompile(`(</(?:ul|ol|pre)>)\n{2,}`)
	blankBeforeHeader = regexp.MustCompile(`(</(?:ul|ol|pre)>)\n{2,}(<h[12]>)`)
)

// collapseWhitespace applies the final spacing rules: no blank lines hugging
// list or code blocks, none between such a block and a following heading, at
// most one blank line anywhere else, and no leading or trailing whitespace.
func collapseWhitespace(s string) string {
	s = manyNewlinesRe.ReplaceAllString(s, "\n\n")
	s = blankBeforeHeader.ReplaceAllString(s, "$1\n$2")
	s = blankBeforeBlock.ReplaceAllString(s, "\n$1")
	s = blankAfterBlock.ReplaceAllString(s, "$1\n")
	return strings.TrimSpace(s)
}
