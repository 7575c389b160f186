// Package content is the per-page context: it answers requests about the
// loaded document, its selection and its highlights.
package content

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hyperifyio/contentsnap/internal/dom"
	"github.com/hyperifyio/contentsnap/internal/extract"
	"github.com/hyperifyio/contentsnap/internal/metrics"
	"github.com/hyperifyio/contentsnap/internal/protocol"
)

// MinSelectionChars is the length a selection must exceed to be preferred
// over the page content.
const MinSelectionChars = 50

// WordsPerMinute is the reading speed ReadingTime assumes.
const WordsPerMinute = 200

// Page is a loaded document. The selection source is consulted on every
// request so it always reflects the live selection.
type Page struct {
	url string

	mu        sync.Mutex
	doc       *dom.HTML
	selection func() string
}

// New returns a page for doc loaded from pageURL.
func New(doc *dom.HTML, pageURL string) *Page {
	return &Page{doc: doc, url: pageURL, selection: func() string { return "" }}
}

// UseSelection sets where the current selection is read from, typically a
// selection.Tracker's Selection method.
func (p *Page) UseSelection(f func() string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f == nil {
		f = func() string { return "" }
	}
	p.selection = f
}

// URL of the page.
func (p *Page) URL() string { return p.url }

// Title of the page.
func (p *Page) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Title()
}

// MainContent runs the extraction policy over the document.
func (p *Page) MainContent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return extract.MainContent(p.doc)
}

// Selection returns the trimmed live selection.
func (p *Page) Selection() string {
	p.mu.Lock()
	f := p.selection
	p.mu.Unlock()
	return strings.TrimSpace(f())
}

// SelectedOrPageText prefers a selection longer than MinSelectionChars and
// otherwise falls back to the main content.
func (p *Page) SelectedOrPageText() string {
	if sel := p.Selection(); utf8.RuneCountInString(sel) > MinSelectionChars {
		return sel
	}
	return p.MainContent()
}

// Snapshot is everything the background reads from a tab.
func (p *Page) Snapshot() protocol.PageData {
	return protocol.PageData{
		Content:   p.MainContent(),
		Title:     p.Title(),
		URL:       p.url,
		Selection: p.Selection(),
	}
}

// Highlight marks occurrences of text and returns how many were marked.
func (p *Page) Highlight(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Highlight(text)
}

// ClearHighlights removes every mark.
func (p *Page) ClearHighlights() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.ClearHighlights()
}

// Handle implements protocol.Handler for content actions.
func (p *Page) Handle(_ context.Context, _ protocol.Sender, req protocol.Request) protocol.Response {
	resp := p.handle(req)
	outcome := "ok"
	if _, unknown := resp.(protocol.ErrorResponse); unknown {
		outcome = "unknown"
	}
	metrics.RouterRequests.WithLabelValues("content", string(req.Action()), outcome).Inc()
	return resp
}

func (p *Page) handle(req protocol.Request) protocol.Response {
	switch m := req.(type) {
	case protocol.GetSelectedText:
		return protocol.SelectedTextResponse{Text: p.SelectedOrPageText(), URL: p.url, Title: p.Title()}
	case protocol.GetPageContent:
		d := p.Snapshot()
		return protocol.PageContentResponse{Content: d.Content, URL: d.URL, Title: d.Title, Selection: d.Selection}
	case protocol.HighlightText:
		p.Highlight(m.Text)
		return protocol.SuccessResponse{Success: true}
	case protocol.ClearHighlights:
		p.ClearHighlights()
		return protocol.SuccessResponse{Success: true}
	}
	return protocol.Unknown()
}

// ReadingTime estimates minutes to read text, rounded up.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) / WordsPerMinute))
}
