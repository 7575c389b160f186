// Package browser declares the browser capabilities the contexts depend on.
// The bridge implements them over WebSocket; tests use in-memory fakes.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperifyio/contentsnap/internal/apperr"
	"github.com/hyperifyio/contentsnap/internal/protocol"
)

// Tab is the subset of a browser tab the contexts read.
type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Tabs queries tabs and reads page content. Snapshot is the equivalent of
// injecting a script into the tab: it fails for pages the extension cannot
// access.
type Tabs interface {
	ActiveTab(ctx context.Context) (Tab, error)
	Snapshot(ctx context.Context, tabID int) (protocol.PageData, error)
}

// Windows opens the popup surface.
type Windows interface {
	OpenPopup(ctx context.Context) error
}

// Notifier pushes fire-and-forget events to a tab.
type Notifier interface {
	Notify(ctx context.Context, tabID int, ev protocol.Event) error
}

// Browser bundles every capability the background needs.
type Browser interface {
	Tabs
	Windows
	Notifier
}

var restrictedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"about:",
	"view-source:",
	"devtools://",
}

// IsRestricted reports whether pageURL is a browser-internal page that
// scripts cannot run on. An empty URL is restricted too.
func IsRestricted(pageURL string) bool {
	u := strings.ToLower(strings.TrimSpace(pageURL))
	if u == "" {
		return true
	}
	for _, p := range restrictedPrefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

// IsWebPage reports whether pageURL uses http or https, the only schemes the
// context menus are registered for.
func IsWebPage(pageURL string) bool {
	u := strings.ToLower(strings.TrimSpace(pageURL))
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// MsgRestricted is shown when a page cannot be scripted.
const MsgRestricted = "Cannot access this page. Extension cannot run on browser pages."

// RestrictedError is the SCRIPT_INJECTION error for pageURL.
func RestrictedError(pageURL string) error {
	return apperr.Wrap(apperr.CodeScriptInjection, MsgRestricted, fmt.Errorf("restricted url %q", pageURL))
}
