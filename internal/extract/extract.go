package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/contentsnap/internal/dom"
)

const (
	// MinCandidateChars is the length a priority container's text must
	// exceed to be accepted over the body fallback.
	MinCandidateChars = 100
	// MaxChars bounds every extraction result.
	MaxChars = 5000
	// TruncationMarker is appended when a result was clamped.
	TruncationMarker = "..."
)

// PrioritySelectors lists likely main-content containers, most trusted first.
var PrioritySelectors = []string{
	"article",
	`[role="main"]`,
	"main",
	".content",
	".post-content",
	".entry-content",
	".article-content",
	"#content",
	".main-content",
}

// NoiseSelectors are removed from a copy of the body before the fallback
// text is read.
var NoiseSelectors = []string{
	"nav", "header", "footer", "aside",
	".advertisement", ".ads", ".sidebar",
	".navigation", ".menu", ".comments",
	"script", "style", "noscript",
}

// MainContent returns the primary readable text of doc. Structural
// containers are tried in priority order; the first one with more than
// MinCandidateChars of text wins. Otherwise the body is read with noise
// subtrees removed. The result is whitespace-normalized and clamped to
// MaxChars. doc is never mutated.
func MainContent(doc dom.Document) string {
	if doc == nil {
		return ""
	}
	for _, sel := range PrioritySelectors {
		node := doc.QuerySelector(sel)
		if node == nil {
			continue
		}
		text := Normalize(node.Text())
		if runeLen(text) > MinCandidateChars {
			return Clamp(text, MaxChars)
		}
	}

	body := doc.Body()
	if body == nil {
		return ""
	}
	clone := body.Clone()
	for _, sel := range NoiseSelectors {
		clone.RemoveAll(sel)
	}
	return Clamp(Normalize(clone.Text()), MaxChars)
}

// Normalize applies NFC, collapses whitespace runs inside each line to a
// single space and keeps at most one blank line between paragraphs.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Keep at most one consecutive blank
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	// trim trailing blank line
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// Clamp cuts s to max runes and appends TruncationMarker iff it was longer.
func Clamp(s string, max int) string {
	if max <= 0 || runeLen(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + TruncationMarker
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}

func runeLen(s string) int {
	return len([]rune(s))
}
