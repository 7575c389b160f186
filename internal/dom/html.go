package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTML is a Document backed by a parsed goquery tree.
type HTML struct {
	doc *goquery.Document
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*HTML, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTML{doc: doc}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*HTML, error) {
	return Parse(strings.NewReader(s))
}

func (h *HTML) Title() string {
	return strings.TrimSpace(h.doc.Find("head title").First().Text())
}

func (h *HTML) QuerySelector(selector string) Node {
	s := h.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return &element{sel: s}
}

func (h *HTML) Body() Node {
	return h.QuerySelector("body")
}

// Render serializes the current tree, including any highlights.
func (h *HTML) Render() (string, error) {
	return h.doc.Html()
}

type element struct {
	sel *goquery.Selection
}

func (e *element) Text() string {
	var b strings.Builder
	for _, n := range e.sel.Nodes {
		collectText(&b, n, false)
	}
	return b.String()
}

func (e *element) Clone() Node {
	return &element{sel: e.sel.Clone()}
}

func (e *element) RemoveAll(selector string) int {
	found := e.sel.Find(selector)
	n := found.Length()
	if n > 0 {
		found.Remove()
	}
	return n
}

// collectText walks n the way a browser lays out text: hidden containers are
// skipped, whitespace inside text nodes is flattened outside <pre>, and block
// boundaries become newlines.
func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.CommentNode {
		return
	}
	var name string
	if n.Type == html.ElementNode {
		name = strings.ToLower(n.Data)
		switch name {
		case "script", "style", "noscript", "template", "head", "iframe":
			return
		case "pre", "textarea":
			inPre = true
		case "br":
			b.WriteString("\n")
		}
		if isBlock(name) {
			breakLines(b, 1)
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = flatten.Replace(data)
			// whitespace between blocks carries no text
			if strings.TrimSpace(data) == "" && endsWithNewline(b) {
				data = ""
			}
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	switch name {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
		breakLines(b, 2)
	default:
		if isBlock(name) {
			breakLines(b, 1)
		}
	}
}

var flatten = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// breakLines makes sure the output ends with at least n newlines.
func breakLines(b *strings.Builder, n int) {
	s := b.String()
	if s == "" {
		return
	}
	have := len(s) - len(strings.TrimRight(s, "\n"))
	for ; have < n; have++ {
		b.WriteByte('\n')
	}
}

func endsWithNewline(b *strings.Builder) bool {
	s := b.String()
	return s == "" || s[len(s)-1] == '\n'
}

func isBlock(name string) bool {
	switch name {
	case "address", "article", "aside", "blockquote", "dd", "div", "dl", "dt",
		"fieldset", "figcaption", "figure", "footer", "form", "h1", "h2", "h3",
		"h4", "h5", "h6", "header", "hr", "li", "main", "nav", "ol", "p", "pre",
		"section", "table", "tr", "ul", "body":
		return true
	}
	return false
}
