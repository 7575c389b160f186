package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HighlightClass is the class carried by every inserted <mark>.
const HighlightClass = "contentsnap-highlight"

// minHighlightLen is the shortest needle worth marking.
const minHighlightLen = 3

// Highlight clears previous highlights, then wraps every case-insensitive
// occurrence of text inside body text nodes in a <mark>. Text under script
// and style is left alone. It returns the number of inserted marks.
func (h *HTML) Highlight(text string) int {
	h.ClearHighlights()
	if len([]rune(text)) < minHighlightLen {
		return 0
	}
	body := h.doc.Find("body").First()
	if body.Length() == 0 {
		return 0
	}

	var targets []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style":
				return
			}
		}
		if n.Type == html.TextNode && containsFold(n.Data, text) {
			targets = append(targets, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range body.Nodes {
		walk(n)
	}

	marks := 0
	for _, n := range targets {
		marks += splitAndMark(n, text)
	}
	return marks
}

// ClearHighlights replaces every mark with its text and merges the adjacent
// text nodes back together.
func (h *HTML) ClearHighlights() int {
	found := h.doc.Find("mark." + HighlightClass)
	cleared := 0
	parents := map[*html.Node]struct{}{}
	for _, m := range found.Nodes {
		parent := m.Parent
		if parent == nil {
			continue
		}
		var b strings.Builder
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: b.String()}, m)
		parent.RemoveChild(m)
		parents[parent] = struct{}{}
		cleared++
	}
	for p := range parents {
		mergeTextNodes(p)
	}
	return cleared
}

func splitAndMark(n *html.Node, needle string) int {
	parent := n.Parent
	if parent == nil {
		return 0
	}
	data := n.Data
	lower := strings.ToLower(data)
	lowerNeedle := strings.ToLower(needle)
	// Offsets are shared between data and its lowered form.
	if len(lower) != len(data) || len(lowerNeedle) != len(needle) {
		return 0
	}
	marks := 0
	pos := 0
	for {
		i := strings.Index(lower[pos:], lowerNeedle)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(lowerNeedle)
		if start > pos {
			parent.InsertBefore(&html.Node{Type: html.TextNode, Data: data[pos:start]}, n)
		}
		mark := &html.Node{
			Type:     html.ElementNode,
			Data:     "mark",
			DataAtom: atom.Mark,
			Attr:     []html.Attribute{{Key: "class", Val: HighlightClass}},
		}
		mark.AppendChild(&html.Node{Type: html.TextNode, Data: data[start:end]})
		parent.InsertBefore(mark, n)
		marks++
		pos = end
	}
	if marks == 0 {
		return 0
	}
	if pos < len(data) {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: data[pos:]}, n)
	}
	parent.RemoveChild(n)
	return marks
}

func mergeTextNodes(parent *html.Node) {
	c := parent.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.TextNode && next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			parent.RemoveChild(next)
			continue
		}
		c = next
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
