package summarize

import (
	"strings"

	"github.com/hyperifyio/contentsnap/internal/apperr"
)

// Format is the summary layout requested from the service.
type Format string

const (
	FormatBulletPoints Format = "bullet_points"
	FormatParagraph    Format = "paragraph"
	FormatTLDR         Format = "tldr"
	FormatSimplified   Format = "simplified"
	FormatDetailed     Format = "detailed"
)

// DetailLevel controls verbosity; it is opaque to contentsnap.
type DetailLevel string

const (
	DetailLow    DetailLevel = "low"
	DetailMedium DetailLevel = "medium"
	DetailHigh   DetailLevel = "high"
)

// Formats lists every accepted format, default first.
func Formats() []Format {
	return []Format{FormatBulletPoints, FormatParagraph, FormatTLDR, FormatSimplified, FormatDetailed}
}

// DetailLevels lists every accepted level, low to high.
func DetailLevels() []DetailLevel {
	return []DetailLevel{DetailLow, DetailMedium, DetailHigh}
}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", apperr.NewValidation("unknown format: " + s)
}

// ParseDetailLevel accepts a detail level case-insensitively.
func ParseDetailLevel(s string) (DetailLevel, error) {
	d := DetailLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DetailLevels() {
		if d == known {
			return d, nil
		}
	}
	return "", apperr.NewValidation("unknown detail level: " + s)
}
