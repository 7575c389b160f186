// Package dom is the document capability the extraction policy runs against.
// Only the small surface the policy needs is exposed: query by selector, read
// text, clone and remove subtrees. HTML is the goquery-backed implementation.
package dom

// Node is one element subtree.
type Node interface {
	// Text approximates the browser's innerText: script and style bodies are
	// skipped and block elements are separated by newlines.
	Text() string
	// Clone returns a detached deep copy. Mutating the copy never touches
	// the original tree.
	Clone() Node
	// RemoveAll removes every descendant matching selector and returns the
	// number of removed subtrees.
	RemoveAll(selector string) int
}

// Document is a queryable page.
type Document interface {
	Title() string
	// QuerySelector returns the first element matching selector, or nil.
	// Invalid selectors match nothing.
	QuerySelector(selector string) Node
	// Body returns the body element, or nil for documents without one.
	Body() Node
}

// Highlighter marks occurrences of text in a document.
type Highlighter interface {
	Highlight(text string) int
	ClearHighlights() int
}
