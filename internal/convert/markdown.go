package convert

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLToMarkdown converts stored Asana rich text into readable markdown for
// display and export. The transform is lossy only for structural attributes
// (cell widths, classes); visible text, links, and mentions are preserved so
// re-uploading the result keeps the content intact.
func HTMLToMarkdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		// The tolerant parser only fails on reader errors, which a string
		// reader cannot produce; fall back to the raw input.
		return src
	}

	var b strings.Builder
	renderChildren(&b, findBody(doc))

	out := manyNewlinesRe.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

func renderChildren(b *strings.Builder, n *html.Node) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		renderElement(b, n)
	}
}

func renderElement(b *strings.Builder, n *html.Node) {
	switch n.Data {
	case "h1":
		b.WriteString("# ")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case "h2", "h3", "h4", "h5", "h6":
		b.WriteString("## ")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case "blockquote":
		var inner strings.Builder
		renderChildren(&inner, n)
		for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	case "ul", "ol":
		renderChildren(b, n)
		b.WriteString("\n")
	case "li":
		var inner strings.Builder
		renderChildren(&inner, n)
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(inner.String()))
		b.WriteString("\n")
	case "pre":
		b.WriteString("```\n")
		b.WriteString(strings.TrimRight(textContent(n), "\n"))
		b.WriteString("\n```\n\n")
	case "code":
		b.WriteString("`")
		renderChildren(b, n)
		b.WriteString("`")
	case "strong", "b":
		b.WriteString("**")
		renderChildren(b, n)
		b.WriteString("**")
	case "em", "i":
		b.WriteString("*")
		renderChildren(b, n)
		b.WriteString("*")
	case "u":
		b.WriteString("__")
		renderChildren(b, n)
		b.WriteString("__")
	case "s", "del", "strike":
		b.WriteString("~~")
		renderChildren(b, n)
		b.WriteString("~~")
	case "a":
		renderAnchor(b, n)
	case "hr":
		b.WriteString("---\n\n")
	case "br":
		b.WriteString("\n")
	case "table":
		renderTable(b, n)
	default:
		// Unknown or structural tags are stripped, keeping their content.
		renderChildren(b, n)
	}
}

// renderAnchor emits mentions as @Name profile links, bare mention elements
// as the profile URL itself (which converts back to an empty-bodied mention),
// and ordinary anchors as [text](href).
func renderAnchor(b *strings.Builder, n *html.Node) {
	gid := attrValue(n, "data-asana-gid")
	text := strings.TrimSpace(textContent(n))

	if gid != "" {
		url := "https://app.asana.com/0/profile/" + gid
		if text == "" {
			b.WriteString(url)
			return
		}
		b.WriteString("[@")
		b.WriteString(text)
		b.WriteString("](")
		b.WriteString(url)
		b.WriteString(")")
		return
	}

	href := attrValue(n, "href")
	if text == href || text == "" {
		b.WriteString(href)
		return
	}
	b.WriteString("[")
	b.WriteString(text)
	b.WriteString("](")
	b.WriteString(href)
	b.WriteString(")")
}

var pipeRe = regexp.MustCompile(`\|`)

func renderTable(b *strings.Builder, n *html.Node) {
	var walkRows func(*html.Node)
	walkRows = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody":
				walkRows(c)
			case "tr":
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						text := strings.TrimSpace(textContent(cell))
						cells = append(cells, pipeRe.ReplaceAllString(text, `\|`))
					}
				}
				b.WriteString("| ")
				b.WriteString(strings.Join(cells, " | "))
				b.WriteString(" |\n")
			}
		}
	}
	walkRows(n)
	b.WriteString("\n")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
