// Package capture holds text captured from a page until the popup consumes it.
package capture

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperifyio/contentsnap/internal/extract"
)

// Text is one capture. ID exists for log correlation only; nothing links a
// capture back to the tab it came from.
type Text struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	SourceURL   string    `json:"sourceUrl,omitempty"`
	SourceTitle string    `json:"sourceTitle,omitempty"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// New trims and clamps content and stamps the capture with the current time.
func New(content, sourceURL, sourceTitle string) Text {
	now := time.Now().UTC()
	return Text{
		ID:          ulid.Make().String(),
		Content:     extract.Clamp(strings.TrimSpace(content), extract.MaxChars),
		SourceURL:   sourceURL,
		SourceTitle: sourceTitle,
		CapturedAt:  now,
	}
}

// Empty reports whether the capture carries no text.
func (t Text) Empty() bool { return t.Content == "" }

// Len is the capture length in characters.
func (t Text) Len() int { return len([]rune(t.Content)) }
