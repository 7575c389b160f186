// Package export writes a finished summary to Markdown or PDF.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/contentsnap/internal/summarize"
)

// Summary is one exported result.
type Summary struct {
	Title       string
	SourceURL   string
	Format      summarize.Format
	DetailLevel summarize.DetailLevel
	Text        string
	Stats       summarize.Stats
	CreatedAt   time.Time
}

// Markdown renders s as a small Markdown document.
func Markdown(s Summary) string {
	var b strings.Builder
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = "Summary"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.SourceURL != "" {
		fmt.Fprintf(&b, "Source: [%s](%s)\n\n", s.SourceURL, s.SourceURL)
	}
	fmt.Fprintf(&b, "Format: %s, detail: %s\n\n", s.Format, s.DetailLevel)
	b.WriteString(strings.TrimSpace(s.Text))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "_%s_\n", s.Stats)
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "\n_Generated %s_\n", s.CreatedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// WriteMarkdown writes the Markdown rendering to path.
func WriteMarkdown(s Summary, path string) error {
	if err := os.WriteFile(path, []byte(Markdown(s)), 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// PDF renders the Markdown form of s onto A4 pages: headings in bold,
// links clickable, everything else as wrapped paragraphs.
func PDF(s Summary, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(s.Title), false)
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	scanner := bufio.NewScanner(strings.NewReader(Markdown(s)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pdf.Ln(4)
			continue
		}
		if strings.HasPrefix(line, "#") {
			text := strings.TrimSpace(strings.TrimLeft(line, "#"))
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 8, tr(text), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
			continue
		}
		if strings.HasPrefix(line, "_") && strings.HasSuffix(line, "_") {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 5, tr(strings.Trim(line, "_")), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
			continue
		}
		parts := linkRe.FindAllStringSubmatchIndex(line, -1)
		if len(parts) == 0 {
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
			continue
		}
		pos := 0
		for _, m := range parts {
			if m[0] > pos {
				pdf.Write(5, tr(line[pos:m[0]]))
			}
			pdf.WriteLinkString(5, tr(line[m[2]:m[3]]), line[m[4]:m[5]])
			pos = m[1]
		}
		if pos < len(line) {
			pdf.Write(5, tr(line[pos:]))
		}
		pdf.Ln(6)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan markdown: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// WritePDF writes the PDF rendering to path.
func WritePDF(s Summary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := PDF(s, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
