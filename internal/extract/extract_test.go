package extract

import (
	"strings"
	"testing"

	"github.com/hyperifyio/contentsnap/internal/dom"
)

// fakeNode is a body made of labeled fragments; RemoveAll drops fragments
// whose label equals the selector.
type fakeNode struct {
	parts   []fakePart
	removed *int
}

type fakePart struct {
	label string
	text  string
}

func (n *fakeNode) Text() string {
	var b strings.Builder
	for _, p := range n.parts {
		b.WriteString(p.text)
		b.WriteString("\n")
	}
	return b.String()
}

func (n *fakeNode) Clone() dom.Node {
	cp := append([]fakePart(nil), n.parts...)
	return &fakeNode{parts: cp, removed: n.removed}
}

func (n *fakeNode) RemoveAll(selector string) int {
	kept := n.parts[:0]
	count := 0
	for _, p := range n.parts {
		if p.label == selector {
			count++
			continue
		}
		kept = append(kept, p)
	}
	n.parts = kept
	if n.removed != nil {
		*n.removed += count
	}
	return count
}

type fakeDoc struct {
	matches map[string]string
	body    *fakeNode
	queried []string
}

func (d *fakeDoc) Title() string { return "fake" }

func (d *fakeDoc) QuerySelector(sel string) dom.Node {
	d.queried = append(d.queried, sel)
	if text, ok := d.matches[sel]; ok {
		return &fakeNode{parts: []fakePart{{label: sel, text: text}}}
	}
	return nil
}

func (d *fakeDoc) Body() dom.Node {
	if d.body == nil {
		return nil
	}
	return d.body
}

func TestMainContent_PrioritySelectorWins(t *testing.T) {
	long := strings.Repeat("readable words ", 10)
	doc := &fakeDoc{
		matches: map[string]string{
			"main":     long + "from main",
			".content": long + "from content",
		},
		body: &fakeNode{parts: []fakePart{{label: "p", text: "body text that should not be used"}}},
	}
	got := MainContent(doc)
	if !strings.HasSuffix(got, "from main") {
		t.Fatalf("expected main container text, got %q", got)
	}
	// article and [role=main] are consulted before main
	if len(doc.queried) != 3 || doc.queried[0] != "article" || doc.queried[1] != `[role="main"]` {
		t.Fatalf("unexpected query order: %v", doc.queried)
	}
}

func TestMainContent_ShortCandidateFallsThrough(t *testing.T) {
	doc := &fakeDoc{
		matches: map[string]string{"article": "too short"},
		body: &fakeNode{parts: []fakePart{
			{label: "nav", text: "Navigation links"},
			{label: "p", text: "Visible body paragraph."},
			{label: ".ads", text: "Buy now"},
			{label: "footer", text: "Copyright"},
		}},
	}
	got := MainContent(doc)
	if got != "Visible body paragraph." {
		t.Fatalf("expected filtered body text, got %q", got)
	}
}

func TestMainContent_BodyFallbackDoesNotMutateSource(t *testing.T) {
	removed := 0
	body := &fakeNode{removed: &removed, parts: []fakePart{
		{label: "script", text: "var x"},
		{label: "p", text: "Kept."},
	}}
	doc := &fakeDoc{body: body}
	if got := MainContent(doc); got != "Kept." {
		t.Fatalf("got %q", got)
	}
	if removed != 1 {
		t.Fatalf("expected one removal on the clone, got %d", removed)
	}
	if len(body.parts) != 2 {
		t.Fatalf("source body was mutated: %v", body.parts)
	}
}

func TestMainContent_NilBody(t *testing.T) {
	if got := MainContent(&fakeDoc{}); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if got := MainContent(nil); got != "" {
		t.Fatalf("expected empty result for nil doc, got %q", got)
	}
}

func TestClamp_MarkerIffTruncated(t *testing.T) {
	exact := strings.Repeat("a", MaxChars)
	if got := Clamp(exact, MaxChars); got != exact {
		t.Fatalf("text at the limit must be returned unchanged")
	}
	over := strings.Repeat("b", MaxChars+1)
	got := Clamp(over, MaxChars)
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("expected truncation marker")
	}
	if n := len([]rune(got)); n != MaxChars+len(TruncationMarker) {
		t.Fatalf("unexpected clamped length %d", n)
	}
	// multi-byte runes are never split
	wide := strings.Repeat("é", 10)
	if got := Clamp(wide, 4); got != "éééé..." {
		t.Fatalf("got %q", got)
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	in := "  Hello \t  world  \n\n\n\n  second   line \n \n"
	got := Normalize(in)
	want := "Hello world\n\nsecond line"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestFromHTML_PrefersArticleOverBody(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>Test Page</title></head>
      <body>
        <nav>Nav should be ignored</nav>
        <article>
          <h1>Main Heading</h1>
          <p>This is the main content paragraph. It carries enough words to pass the
          minimum length threshold for a priority container, so it wins.</p>
        </article>
        <footer>Footer text</footer>
      </body>
    </html>`

	doc := FromHTML([]byte(html), "https://example.com/a")
	if doc.Title != "Test Page" {
		t.Fatalf("expected title 'Test Page', got %q", doc.Title)
	}
	if doc.URL != "https://example.com/a" {
		t.Fatalf("unexpected url %q", doc.URL)
	}
	if !strings.HasPrefix(doc.Text, "Main Heading\n\nThis is the main content paragraph.") {
		t.Fatalf("unexpected text: %q", doc.Text)
	}
	if strings.Contains(doc.Text, "Nav should be ignored") || strings.Contains(doc.Text, "Footer text") {
		t.Fatalf("did not expect boilerplate in extracted content: %q", doc.Text)
	}
}

func TestFromHTML_FallbackRemovesNoise(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>No Main</title></head>
      <body>
        <header>Site header</header>
        <div class="menu">Menu entries</div>
        <h2>Body Heading</h2>
        <p>Body paragraph</p>
        <div class="sidebar">Related links</div>
        <div class="comments">Reader comments</div>
        <script>console.log("x")</script>
        <footer>Footer</footer>
      </body>
    </html>`

	doc := FromHTML([]byte(html), "")
	if doc.Text != "Body Heading\n\nBody paragraph" {
		t.Fatalf("unexpected fallback text: %q", doc.Text)
	}
}

func TestFromHTML_ClampsLongArticles(t *testing.T) {
	html := "<html><body><article><p>" + strings.Repeat("word ", 2000) + "</p></article></body></html>"
	doc := FromHTML([]byte(html), "")
	if !strings.HasSuffix(doc.Text, TruncationMarker) {
		t.Fatalf("expected clamped text")
	}
	if n := len([]rune(doc.Text)); n != MaxChars+len(TruncationMarker) {
		t.Fatalf("unexpected length %d", n)
	}
}

func TestFromHTML_PreservesCodeAndListItems(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>Code and List</title></head>
      <body>
        <article>
          <h3>Examples of things worth reading about in a long enough container</h3>
          <ul>
            <li>First item</li>
            <li>Second item</li>
          </ul>
          <pre><code>print("hello")
print("world")</code></pre>
        </article>
      </body>
    </html>`

	doc := FromHTML([]byte(html), "")
	if !strings.Contains(doc.Text, "First item\nSecond item") {
		t.Fatalf("expected list items on separate lines; got: %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "print(\"hello\")\nprint(\"world\")") {
		t.Fatalf("expected code block content to be preserved; got: %q", doc.Text)
	}
}

func TestByName(t *testing.T) {
	if _, ok := ByName("heuristic"); !ok {
		t.Fatalf("heuristic must be registered")
	}
	if e, ok := ByName("Readability"); !ok {
		t.Fatalf("readability must be registered")
	} else if _, isR := e.(Readability); !isR {
		t.Fatalf("unexpected type %T", e)
	}
	if _, ok := ByName("magic"); ok {
		t.Fatalf("unknown strategy must be rejected")
	}
}

func TestReadability_FallsBackOnEmptyInput(t *testing.T) {
	doc := Readability{}.Extract([]byte(`<html><body><p>tiny</p></body></html>`), "https://example.com")
	if !strings.Contains(doc.Text, "tiny") {
		t.Fatalf("expected some text, got %q", doc.Text)
	}
}
