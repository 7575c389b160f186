package background

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/browser"
	"github.com/hyperifyio/contentsnap/internal/protocol"
	"github.com/hyperifyio/contentsnap/internal/settings"
)

// Context menu entries.
const (
	MenuSummarizeSelection = "summarize-selection"
	MenuSummarizePage      = "summarize-page"
)

// MinPageChars is the page length the summarize-page entry needs.
const MinPageChars = 50

// MenuItems lists the entries registered on install. They only apply to
// http and https pages.
func MenuItems() []protocol.MenuItem {
	return []protocol.MenuItem{
		{ID: MenuSummarizeSelection, Title: "Summarize with ContentSnap", Contexts: []string{"selection"}},
		{ID: MenuSummarizePage, Title: "Summarize this page", Contexts: []string{"page"}},
	}
}

// SettingsSeeder writes default settings.
type SettingsSeeder interface {
	SeedDefaults(ctx context.Context) error
}

type settingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// menusEnabled reports the contextMenu preference. Without a loadable
// store the menus stay on, as after install.
func (r *Router) menusEnabled(ctx context.Context) bool {
	l, ok := r.settings.(settingsLoader)
	if !ok {
		return true
	}
	st, err := l.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load settings for context menus")
		return true
	}
	return st.ContextMenu
}

// ContextMenus is the list the extension should register right now.
func (r *Router) ContextMenus(ctx context.Context) []protocol.MenuItem {
	if !r.menusEnabled(ctx) {
		return []protocol.MenuItem{}
	}
	return MenuItems()
}

// Install reasons.
const (
	ReasonInstall = "install"
	ReasonUpdate  = "update"
)

// Installed runs the install and update hooks. A first install seeds the
// default settings.
func (r *Router) Installed(ctx context.Context, reason, previousVersion string) error {
	switch reason {
	case ReasonInstall:
		if r.settings == nil {
			return nil
		}
		if err := r.settings.SeedDefaults(ctx); err != nil {
			log.Error().Err(err).Msg("seed default settings")
			return err
		}
		log.Info().Msg("ContentSnap installed")
	case ReasonUpdate:
		log.Info().Str("from", previousVersion).Msg("ContentSnap updated")
	}
	return nil
}

// MenuClicked handles a context menu click on tab.
func (r *Router) MenuClicked(ctx context.Context, menuID, selectionText string, tab browser.Tab) {
	if !browser.IsWebPage(tab.URL) {
		log.Debug().Str("menu", menuID).Str("url", tab.URL).Msg("menu click outside web page")
		return
	}
	from := protocol.Sender{TabID: tab.ID, URL: tab.URL, Title: tab.Title}
	switch menuID {
	case MenuSummarizeSelection:
		if strings.TrimSpace(selectionText) != "" {
			r.OpenPopupWithText(ctx, selectionText, from)
		}
	case MenuSummarizePage:
		data, err := r.browser.Snapshot(ctx, tab.ID)
		if err != nil {
			log.Error().Err(err).Int("tab", tab.ID).Msg("summarize page content")
			return
		}
		if utf8.RuneCountInString(strings.TrimSpace(data.Content)) > MinPageChars {
			r.OpenPopupWithText(ctx, data.Content, from)
		}
	default:
		log.Warn().Str("menu", menuID).Msg("unknown menu item")
	}
}
