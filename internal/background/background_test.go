package background

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/contentsnap/internal/browser"
	"github.com/hyperifyio/contentsnap/internal/protocol"
	"github.com/hyperifyio/contentsnap/internal/settings"
	"github.com/hyperifyio/contentsnap/internal/summarize"
)

type fakeBrowser struct {
	mu        sync.Mutex
	active    browser.Tab
	activeErr error
	pages     map[int]protocol.PageData
	snapErr   error
	popups    int
	popupErr  error
	events    []protocol.Event
}

func (f *fakeBrowser) ActiveTab(context.Context) (browser.Tab, error) {
	return f.active, f.activeErr
}

func (f *fakeBrowser) Snapshot(_ context.Context, tabID int) (protocol.PageData, error) {
	if f.snapErr != nil {
		return protocol.PageData{}, f.snapErr
	}
	return f.pages[tabID], nil
}

func (f *fakeBrowser) OpenPopup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.popups++
	return f.popupErr
}

func (f *fakeBrowser) Notify(_ context.Context, _ int, ev protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeHealth struct{ h summarize.Health }

func (f fakeHealth) CheckHealth(context.Context) summarize.Health { return f.h }

type fakeSeeder struct{ calls int }

func (f *fakeSeeder) SeedDefaults(context.Context) error { f.calls++; return nil }

var longSelection = strings.Repeat("selected words here ", 5)

func newRouter(b *fakeBrowser) *Router {
	return New(b, fakeHealth{h: summarize.Health{Online: true, Status: 200}}, nil)
}

func dispatch(t *testing.T, r *Router, from protocol.Sender, raw string) map[string]any {
	t.Helper()
	out := protocol.Dispatch(context.Background(), r, from, []byte(raw))
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	return m
}

func TestStoredTextLifecycle(t *testing.T) {
	r := newRouter(&fakeBrowser{})
	tab := protocol.Sender{TabID: 3, URL: "https://example.com"}

	assert.Equal(t, "", dispatch(t, r, tab, `{"action":"getStoredText"}`)["text"])
	assert.Equal(t, true, dispatch(t, r, tab, `{"action":"storeText","text":"  hello  "}`)["success"])
	assert.Equal(t, "hello", dispatch(t, r, tab, `{"action":"getStoredText"}`)["text"])
	assert.Equal(t, "https://example.com", r.Stored().SourceURL)

	// last writer wins, regardless of tab
	dispatch(t, r, protocol.Sender{TabID: 4}, `{"action":"storeText","text":"other"}`)
	assert.Equal(t, "other", dispatch(t, r, tab, `{"action":"getStoredText"}`)["text"])

	assert.Equal(t, true, dispatch(t, r, tab, `{"action":"clearStoredText"}`)["success"])
	assert.Equal(t, "", dispatch(t, r, tab, `{"action":"getStoredText"}`)["text"])
	assert.True(t, r.Stored().Empty())
}

func TestUnknownAction(t *testing.T) {
	r := newRouter(&fakeBrowser{})
	for _, raw := range []string{`{"action":"launchRockets"}`, `{"action":"getSelectedText"}`, `{"action":"highlightText","text":"x"}`} {
		m := dispatch(t, r, protocol.Sender{}, raw)
		assert.Equal(t, protocol.UnknownAction, m["error"], raw)
	}
}

func TestOpenPopupWithText(t *testing.T) {
	b := &fakeBrowser{}
	r := newRouter(b)
	m := dispatch(t, r, protocol.Sender{TabID: 9, URL: "https://a.test"}, `{"action":"openPopupWithText","text":"quick text"}`)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, 1, b.popups)
	require.Len(t, b.events, 1)
	assert.Equal(t, protocol.TextStored{Text: "quick text"}, b.events[0])
	assert.Equal(t, "quick text", r.Stored().Content)

	b.popupErr = errors.New("no window")
	m = dispatch(t, r, protocol.Sender{TabID: 9}, `{"action":"openPopupWithText","text":"again"}`)
	assert.Equal(t, true, m["success"], "popup failures are logged, not reported")
	assert.Equal(t, "again", r.Stored().Content)
}

func TestGetTabContent(t *testing.T) {
	b := &fakeBrowser{
		active: browser.Tab{ID: 1, URL: "https://news.test/a", Title: "A"},
		pages: map[int]protocol.PageData{
			1: {Content: "body", Title: "A", URL: "https://news.test/a", Selection: "sel"},
		},
	}
	r := newRouter(b)
	m := dispatch(t, r, protocol.Sender{}, `{"action":"getTabContent"}`)
	assert.Equal(t, true, m["success"])
	data := m["data"].(map[string]any)
	assert.Equal(t, "body", data["content"])
	assert.Equal(t, "sel", data["selection"])

	b.snapErr = errors.New("frame detached")
	m = dispatch(t, r, protocol.Sender{}, `{"action":"getTabContent"}`)
	assert.Equal(t, false, m["success"])
	assert.Contains(t, m["error"], "frame detached")
}

func TestRestrictedPagesAreRejected(t *testing.T) {
	b := &fakeBrowser{active: browser.Tab{ID: 1, URL: "chrome://settings"}}
	r := newRouter(b)
	m := dispatch(t, r, protocol.Sender{}, `{"action":"getTabContent"}`)
	assert.Equal(t, false, m["success"])
	assert.Equal(t, browser.MsgRestricted, m["error"])

	_, err := r.TabContent(context.Background(), 0)
	require.Error(t, err)
}

func TestSummarizeSelectedText(t *testing.T) {
	b := &fakeBrowser{
		active: browser.Tab{ID: 2, URL: "https://blog.test"},
		pages:  map[int]protocol.PageData{2: {Selection: "too short", URL: "https://blog.test"}},
	}
	r := newRouter(b)
	from := protocol.Sender{TabID: 2, URL: "https://blog.test"}

	m := dispatch(t, r, from, `{"action":"summarizeSelectedText"}`)
	assert.Equal(t, false, m["success"])
	assert.Equal(t, MsgSelectionTooShort, m["error"])
	assert.Equal(t, 0, b.popups)

	b.pages[2] = protocol.PageData{Selection: "  " + longSelection + "  ", URL: "https://blog.test"}
	m = dispatch(t, r, from, `{"action":"summarizeSelectedText"}`)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, strings.TrimSpace(longSelection), m["text"])
	assert.Equal(t, 1, b.popups)
	assert.Equal(t, strings.TrimSpace(longSelection), r.Stored().Content)
}

func TestTabState(t *testing.T) {
	r := newRouter(&fakeBrowser{})
	from := protocol.Sender{TabID: 5}

	m := dispatch(t, r, from, `{"action":"getTabState","tabId":5}`)
	assert.Equal(t, map[string]any{}, m["state"])

	assert.Equal(t, true, dispatch(t, r, from, `{"action":"updateTabState","state":{"scroll":10}}`)["success"])
	m = dispatch(t, r, protocol.Sender{}, `{"action":"getTabState","tabId":5}`)
	assert.Equal(t, map[string]any{"scroll": float64(10)}, m["state"])

	r.TabUpdated(5, false, "https://x.test")
	assert.JSONEq(t, `{"scroll":10}`, string(r.TabState(5)))
	r.TabUpdated(5, true, "https://x.test/next")
	assert.JSONEq(t, `{}`, string(r.TabState(5)))

	dispatch(t, r, from, `{"action":"updateTabState","state":{"a":1}}`)
	r.TabRemoved(5)
	assert.JSONEq(t, `{}`, string(r.TabState(5)))

	m = dispatch(t, r, protocol.Sender{}, `{"action":"updateTabState","state":{}}`)
	assert.NotEmpty(t, m["error"])
}

func TestCheckServerStatus(t *testing.T) {
	r := New(&fakeBrowser{}, fakeHealth{h: summarize.Health{Online: true, Status: 200}}, nil)
	m := dispatch(t, r, protocol.Sender{}, `{"action":"checkServerStatus"}`)
	assert.Equal(t, true, m["online"])
	assert.Equal(t, true, m["success"])
	assert.Equal(t, float64(200), m["status"])

	r = New(&fakeBrowser{}, fakeHealth{h: summarize.Health{Error: "connection refused"}}, nil)
	m = dispatch(t, r, protocol.Sender{}, `{"action":"checkServerStatus"}`)
	assert.Equal(t, false, m["online"])
	assert.Equal(t, "connection refused", m["error"])
}

func TestMenuClicked(t *testing.T) {
	b := &fakeBrowser{pages: map[int]protocol.PageData{
		7: {Content: strings.Repeat("page content ", 10)},
		8: {Content: "tiny"},
	}}
	r := newRouter(b)
	ctx := context.Background()

	r.MenuClicked(ctx, MenuSummarizeSelection, "", browser.Tab{ID: 7, URL: "https://a.test"})
	assert.Equal(t, 0, b.popups)

	r.MenuClicked(ctx, MenuSummarizeSelection, "picked", browser.Tab{ID: 7, URL: "https://a.test"})
	assert.Equal(t, 1, b.popups)
	assert.Equal(t, "picked", r.Stored().Content)

	r.MenuClicked(ctx, MenuSummarizePage, "", browser.Tab{ID: 8, URL: "https://a.test"})
	assert.Equal(t, 1, b.popups)

	r.MenuClicked(ctx, MenuSummarizePage, "", browser.Tab{ID: 7, URL: "https://a.test"})
	assert.Equal(t, 2, b.popups)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("page content ", 10)), r.Stored().Content)

	r.MenuClicked(ctx, MenuSummarizePage, "", browser.Tab{ID: 7, URL: "chrome://newtab"})
	assert.Equal(t, 2, b.popups)
}

func TestActiveTabWithoutURLIsRestricted(t *testing.T) {
	b := &fakeBrowser{active: browser.Tab{ID: 4}, pages: map[int]protocol.PageData{4: {Content: "body"}}}
	r := newRouter(b)
	m := dispatch(t, r, protocol.Sender{}, `{"action":"getTabContent"}`)
	assert.Equal(t, false, m["success"])
	assert.Equal(t, browser.MsgRestricted, m["error"])

	// a content peer asking about itself is identified by id only
	b.active = browser.Tab{ID: 9, URL: "https://a.test"}
	_, err := r.TabContent(context.Background(), 4)
	require.NoError(t, err)
}

func TestContextMenuActions(t *testing.T) {
	ctx := context.Background()
	b := &fakeBrowser{pages: map[int]protocol.PageData{7: {Content: strings.Repeat("page content ", 10)}}}
	store := settings.NewStore(settings.NewMemory())
	r := New(b, fakeHealth{}, store)

	m := dispatch(t, r, protocol.Sender{}, `{"action":"getContextMenus"}`)
	items := m["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, MenuSummarizeSelection, items[0].(map[string]any)["id"])
	assert.Equal(t, "Summarize this page", items[1].(map[string]any)["title"])

	tab := protocol.Sender{TabID: 7, URL: "https://a.test", Title: "A"}
	m = dispatch(t, r, tab, `{"action":"contextMenuClicked","menuItemId":"summarize-selection","selectionText":"picked words"}`)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, 1, b.popups)
	assert.Equal(t, "picked words", r.Stored().Content)
	assert.Equal(t, "A", r.Stored().SourceTitle)

	m = dispatch(t, r, tab, `{"action":"contextMenuClicked","menuItemId":"summarize-page"}`)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, 2, b.popups)

	m = dispatch(t, r, protocol.Sender{}, `{"action":"contextMenuClicked","menuItemId":"summarize-page"}`)
	assert.NotEmpty(t, m["error"])

	require.NoError(t, store.Set(ctx, settings.KeyContextMenu, "false"))
	m = dispatch(t, r, protocol.Sender{}, `{"action":"getContextMenus"}`)
	assert.Empty(t, m["items"])
}

func TestInstalledSeedsDefaults(t *testing.T) {
	s := &fakeSeeder{}
	r := New(&fakeBrowser{}, fakeHealth{}, s)
	require.NoError(t, r.Installed(context.Background(), ReasonUpdate, "1.0.0"))
	assert.Equal(t, 0, s.calls)
	require.NoError(t, r.Installed(context.Background(), ReasonInstall, ""))
	assert.Equal(t, 1, s.calls)
}
