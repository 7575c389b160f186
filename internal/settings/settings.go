// Package settings persists the user's summarization preferences in a
// key-value backend shaped like extension sync storage.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/apperr"
	"github.com/hyperifyio/contentsnap/internal/summarize"
)

// Persisted keys.
const (
	KeyFormat      = "format"
	KeyDetailLevel = "detailLevel"
	KeyTheme       = "theme"
	KeyContextMenu = "contextMenu"
)

// Keys lists every persisted key.
func Keys() []string {
	return []string{KeyFormat, KeyDetailLevel, KeyTheme, KeyContextMenu}
}

// Theme is the popup color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts a theme name case-insensitively.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", apperr.NewValidation("unknown theme: " + s)
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Settings are the user preferences.
type Settings struct {
	Format      summarize.Format
	DetailLevel summarize.DetailLevel
	Theme       Theme
	ContextMenu bool
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		Format:      summarize.FormatBulletPoints,
		DetailLevel: summarize.DetailMedium,
		Theme:       ThemeLight,
		ContextMenu: true,
	}
}

// Validate rejects unknown enum values.
func (s Settings) Validate() error {
	_, err := s.Normalize()
	return err
}

// Normalize returns s with every enum in its canonical lower-case form.
func (s Settings) Normalize() (Settings, error) {
	var err error
	if s.Format, err = summarize.ParseFormat(string(s.Format)); err != nil {
		return s, err
	}
	if s.DetailLevel, err = summarize.ParseDetailLevel(string(s.DetailLevel)); err != nil {
		return s, err
	}
	if s.Theme, err = ParseTheme(string(s.Theme)); err != nil {
		return s, err
	}
	return s, nil
}

func (s Settings) values() map[string]string {
	return map[string]string{
		KeyFormat:      string(s.Format),
		KeyDetailLevel: string(s.DetailLevel),
		KeyTheme:       string(s.Theme),
		KeyContextMenu: strconv.FormatBool(s.ContextMenu),
	}
}

// Backend is the key-value contract: Get returns only the keys that are set.
type Backend interface {
	Get(ctx context.Context, keys []string) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
}

// Store reads and writes Settings through a Backend.
type Store struct {
	backend Backend
}

// NewStore wraps b.
func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

// Load returns the stored settings. Unset keys take their defaults; unknown
// stored values are logged and replaced by defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out := Defaults()
	vals, err := s.backend.Get(ctx, Keys())
	if err != nil {
		return out, fmt.Errorf("load settings: %w", err)
	}
	if v, ok := vals[KeyFormat]; ok {
		if f, err := summarize.ParseFormat(v); err == nil {
			out.Format = f
		} else {
			log.Warn().Str("key", KeyFormat).Str("value", v).Msg("ignoring stored setting")
		}
	}
	if v, ok := vals[KeyDetailLevel]; ok {
		if d, err := summarize.ParseDetailLevel(v); err == nil {
			out.DetailLevel = d
		} else {
			log.Warn().Str("key", KeyDetailLevel).Str("value", v).Msg("ignoring stored setting")
		}
	}
	if v, ok := vals[KeyTheme]; ok {
		if t, err := ParseTheme(v); err == nil {
			out.Theme = t
		} else {
			log.Warn().Str("key", KeyTheme).Str("value", v).Msg("ignoring stored setting")
		}
	}
	if v, ok := vals[KeyContextMenu]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			out.ContextMenu = b
		} else {
			log.Warn().Str("key", KeyContextMenu).Str("value", v).Msg("ignoring stored setting")
		}
	}
	return out, nil
}

// Save validates and persists every field in canonical form.
func (s *Store) Save(ctx context.Context, st Settings) error {
	st, err := st.Normalize()
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, st.values()); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Set updates a single key from its string form, validating it the same way
// Save does.
func (s *Store) Set(ctx context.Context, key, value string) error {
	st, err := s.Load(ctx)
	if err != nil {
		return err
	}
	switch key {
	case KeyFormat:
		st.Format = summarize.Format(value)
	case KeyDetailLevel:
		st.DetailLevel = summarize.DetailLevel(value)
	case KeyTheme:
		st.Theme = Theme(value)
	case KeyContextMenu:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return apperr.NewValidation("contextMenu must be true or false")
		}
		st.ContextMenu = b
	default:
		return apperr.NewValidation("unknown setting: " + key)
	}
	return s.Save(ctx, st)
}

// SeedDefaults writes the default settings, as done on first install.
func (s *Store) SeedDefaults(ctx context.Context) error {
	return s.Save(ctx, Defaults())
}
