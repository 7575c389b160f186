// Package background is the coordinating context: it owns the captured text
// slot and per-tab state, reads pages through the browser, opens the popup
// and probes the summarization service.
package background

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/apperr"
	"github.com/hyperifyio/contentsnap/internal/browser"
	"github.com/hyperifyio/contentsnap/internal/capture"
	"github.com/hyperifyio/contentsnap/internal/metrics"
	"github.com/hyperifyio/contentsnap/internal/protocol"
	"github.com/hyperifyio/contentsnap/internal/summarize"
)

// MinSelectionChars is the shortest selection summarizeSelectedText accepts.
const MinSelectionChars = 50

// MsgSelectionTooShort answers summarizeSelectedText without a usable selection.
const MsgSelectionTooShort = "No text selected or text too short"

// HealthChecker probes the summarization service.
type HealthChecker interface {
	CheckHealth(ctx context.Context) summarize.Health
}

// Router handles background requests. Its zero value is not usable; call New.
type Router struct {
	browser  browser.Browser
	health   HealthChecker
	settings SettingsSeeder

	mu        sync.Mutex
	stored    capture.Text
	tabStates map[int]json.RawMessage
}

// New returns a Router reading pages through b and probing health through hc.
// seeder may be nil when no settings store is attached.
func New(b browser.Browser, hc HealthChecker, seeder SettingsSeeder) *Router {
	return &Router{
		browser:   b,
		health:    hc,
		settings:  seeder,
		tabStates: map[int]json.RawMessage{},
	}
}

// Stored returns the current capture.
func (r *Router) Stored() capture.Text {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored
}

func (r *Router) store(t capture.Text) {
	r.mu.Lock()
	r.stored = t
	r.mu.Unlock()
	if t.Empty() {
		log.Debug().Msg("stored text cleared")
		return
	}
	log.Debug().Str("capture", t.ID).Int("chars", t.Len()).Str("url", t.SourceURL).Msg("text stored")
}

// Handle implements protocol.Handler.
func (r *Router) Handle(ctx context.Context, from protocol.Sender, req protocol.Request) protocol.Response {
	resp := r.handle(ctx, from, req)
	outcome := "ok"
	switch v := resp.(type) {
	case protocol.ErrorResponse:
		if v.Error == protocol.UnknownAction {
			outcome = "unknown"
		} else {
			outcome = "error"
		}
	case protocol.TabContentResponse:
		if !v.Success {
			outcome = "error"
		}
	case protocol.SummarizeSelectedResponse:
		if !v.Success {
			outcome = "error"
		}
	}
	metrics.RouterRequests.WithLabelValues("background", string(req.Action()), outcome).Inc()
	return resp
}

func (r *Router) handle(ctx context.Context, from protocol.Sender, req protocol.Request) protocol.Response {
	switch m := req.(type) {
	case protocol.GetStoredText:
		return protocol.TextResponse{Text: r.Stored().Content}

	case protocol.StoreText:
		r.store(capture.New(m.Text, from.URL, from.Title))
		return protocol.SuccessResponse{Success: true}

	case protocol.ClearStoredText:
		r.store(capture.Text{})
		return protocol.SuccessResponse{Success: true}

	case protocol.OpenPopupWithText:
		r.OpenPopupWithText(ctx, m.Text, from)
		return protocol.SuccessResponse{Success: true}

	case protocol.GetTabContent:
		data, err := r.TabContent(ctx, from.TabID)
		if err != nil {
			log.Warn().Err(err).Int("tab", from.TabID).Msg("get tab content")
			return protocol.TabContentResponse{Success: false, Error: apperr.MessageOf(err)}
		}
		return protocol.TabContentResponse{Success: true, Data: &data}

	case protocol.SummarizeSelectedText:
		text, err := r.SummarizeSelected(ctx, from)
		if err != nil {
			log.Warn().Err(err).Int("tab", from.TabID).Msg("summarize selected text")
			return protocol.SummarizeSelectedResponse{Success: false, Error: apperr.MessageOf(err)}
		}
		return protocol.SummarizeSelectedResponse{Success: true, Text: text}

	case protocol.GetContextMenus:
		return protocol.ContextMenusResponse{Items: r.ContextMenus(ctx)}

	case protocol.ContextMenuClicked:
		if from.TabID == 0 {
			return protocol.ErrorResponse{Error: "contextMenuClicked requires a tab"}
		}
		r.MenuClicked(ctx, m.MenuItemID, m.SelectionText, browser.Tab{ID: from.TabID, URL: from.URL, Title: from.Title})
		return protocol.SuccessResponse{Success: true}

	case protocol.UpdateTabState:
		if from.TabID == 0 {
			return protocol.ErrorResponse{Error: "updateTabState requires a tab"}
		}
		state := m.State
		if len(state) == 0 {
			state = json.RawMessage("{}")
		}
		r.mu.Lock()
		r.tabStates[from.TabID] = state
		r.mu.Unlock()
		return protocol.SuccessResponse{Success: true}

	case protocol.GetTabState:
		return protocol.TabStateResponse{State: r.TabState(m.TabID)}

	case protocol.CheckServerStatus:
		h := r.health.CheckHealth(ctx)
		return protocol.ServerStatusResponse{Success: h.Online, Status: h.Status, Online: h.Online, Error: h.Error}
	}
	return protocol.Unknown()
}

// TabState returns the blob stored for tabID, or {} when there is none.
func (r *Router) TabState(tabID int) json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.tabStates[tabID]; ok {
		return s
	}
	return json.RawMessage("{}")
}

// TabRemoved drops the state of a closed tab.
func (r *Router) TabRemoved(tabID int) {
	r.mu.Lock()
	delete(r.tabStates, tabID)
	r.mu.Unlock()
}

// TabUpdated drops the state of a tab that finished loading a page.
func (r *Router) TabUpdated(tabID int, complete bool, pageURL string) {
	if !complete || pageURL == "" {
		return
	}
	r.TabRemoved(tabID)
}

// OpenPopupWithText stores text, opens the popup and tells the source tab.
// Failures are logged; the caller always sees success.
func (r *Router) OpenPopupWithText(ctx context.Context, text string, from protocol.Sender) {
	t := capture.New(text, from.URL, from.Title)
	r.store(t)
	if err := r.browser.OpenPopup(ctx); err != nil {
		log.Error().Err(err).Msg("open popup with text")
		return
	}
	if from.TabID != 0 {
		if err := r.browser.Notify(ctx, from.TabID, protocol.TextStored{Text: t.Content}); err != nil {
			log.Debug().Err(err).Int("tab", from.TabID).Msg("notify textStored")
		}
	}
}

// resolveTab returns tabID's tab, or the active one when tabID is zero.
func (r *Router) resolveTab(ctx context.Context, tabID int) (browser.Tab, error) {
	active, err := r.browser.ActiveTab(ctx)
	if tabID == 0 {
		if err != nil {
			return browser.Tab{}, apperr.Wrap(apperr.CodeNoActiveTab, "No active tab found. Please try again.", err)
		}
		return active, nil
	}
	if err == nil && active.ID == tabID {
		return active, nil
	}
	return browser.Tab{ID: tabID}, nil
}

// TabContent reads the main content, title, URL and selection of a tab.
func (r *Router) TabContent(ctx context.Context, tabID int) (protocol.PageData, error) {
	tab, err := r.resolveTab(ctx, tabID)
	if err != nil {
		return protocol.PageData{}, err
	}
	// Tabs looked up by id may lack a URL; an active tab without one is
	// treated as restricted.
	if (tabID == 0 || tab.URL != "") && browser.IsRestricted(tab.URL) {
		return protocol.PageData{}, browser.RestrictedError(tab.URL)
	}
	data, err := r.browser.Snapshot(ctx, tab.ID)
	if err != nil {
		return protocol.PageData{}, fmt.Errorf("snapshot tab %d: %w", tab.ID, err)
	}
	return data, nil
}

// SummarizeSelected reads the selection of the sender's tab and, when it is
// long enough, stores it and opens the popup.
func (r *Router) SummarizeSelected(ctx context.Context, from protocol.Sender) (string, error) {
	data, err := r.TabContent(ctx, from.TabID)
	if err != nil {
		return "", err
	}
	sel := strings.TrimSpace(data.Selection)
	if utf8.RuneCountInString(sel) < MinSelectionChars {
		return "", apperr.NewValidation(MsgSelectionTooShort)
	}
	r.store(capture.New(sel, data.URL, data.Title))
	if err := r.browser.OpenPopup(ctx); err != nil {
		return "", fmt.Errorf("open popup: %w", err)
	}
	return sel, nil
}
