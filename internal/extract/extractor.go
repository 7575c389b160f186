package extract

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/hyperifyio/contentsnap/internal/dom"
)

// Document is the extracted content of one page.
type Document struct {
	Title string
	URL   string
	Text  string
}

// Extractor defines a minimal interface for content extraction strategies.
// Implementations can swap readability tactics without changing callers.
type Extractor interface {
	// Extract converts raw HTML bytes into a simplified Document.
	Extract(input []byte, pageURL string) Document
}

// Heuristic runs MainContent over a goquery-parsed tree.
type Heuristic struct{}

func (Heuristic) Extract(input []byte, pageURL string) Document {
	return FromHTML(input, pageURL)
}

// Readability scores the page with go-readability and falls back to the
// heuristic policy when the scorer finds nothing.
type Readability struct{}

func (Readability) Extract(input []byte, pageURL string) Document {
	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			base = u
		}
	}
	article, err := readability.FromReader(bytes.NewReader(input), base)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return FromHTML(input, pageURL)
	}
	return Document{
		Title: strings.TrimSpace(article.Title),
		URL:   pageURL,
		Text:  Clamp(Normalize(article.TextContent), MaxChars),
	}
}

// ByName returns the strategy registered under name: "heuristic" (default)
// or "readability".
func ByName(name string) (Extractor, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "heuristic":
		return Heuristic{}, true
	case "readability":
		return Readability{}, true
	}
	return nil, false
}

// FromHTML parses input and applies MainContent.
func FromHTML(input []byte, pageURL string) Document {
	doc, err := dom.Parse(bytes.NewReader(input))
	if err != nil {
		return Document{URL: pageURL}
	}
	return Document{Title: doc.Title(), URL: pageURL, Text: MainContent(doc)}
}
