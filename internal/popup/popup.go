// Package popup drives the summarization panel: it loads preferences, picks
// up captured text, reads the active tab through the background and renders
// results or transient errors.
package popup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/apperr"
	"github.com/hyperifyio/contentsnap/internal/browser"
	"github.com/hyperifyio/contentsnap/internal/notice"
	"github.com/hyperifyio/contentsnap/internal/protocol"
	"github.com/hyperifyio/contentsnap/internal/settings"
	"github.com/hyperifyio/contentsnap/internal/summarize"
)

// User-facing messages.
const (
	MsgPreloaded      = "Pre-loaded text from selection"
	MsgNoText         = "No text selected or text too short. Please select text on the page or use custom text mode."
	MsgNoActiveTab    = "No active tab found. Please try again."
	MsgAccessFailed   = "Could not access page content. Please try selecting text manually or use custom text mode."
	MsgEnterText      = "Please enter some text to summarize."
	MsgCustomTooShort = summarize.MsgTooShort
)

// PrefillMinChars is the length stored text must exceed to prefill the panel.
const PrefillMinChars = 50

// Messenger delivers a request to the background context.
type Messenger interface {
	Send(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

// Summarizer is the summarization service client.
type Summarizer interface {
	Summarize(ctx context.Context, req summarize.Request) (*summarize.Result, error)
}

// View is a rendered summary.
type View struct {
	Summary string
	Stats   summarize.Stats
}

// Controller holds the panel state. It is safe for concurrent use.
type Controller struct {
	bg      Messenger
	client  Summarizer
	store   *settings.Store
	notices *notice.Board

	mu       sync.Mutex
	settings settings.Settings
	prefill  string
	view     *View
}

// New returns a controller using defaults until Open loads the stored settings.
func New(bg Messenger, client Summarizer, store *settings.Store, notices *notice.Board) *Controller {
	if notices == nil {
		notices = notice.NewBoard()
	}
	return &Controller{bg: bg, client: client, store: store, notices: notices, settings: settings.Defaults()}
}

// Notices is the board errors and notifications are shown on.
func (c *Controller) Notices() *notice.Board { return c.notices }

// Settings returns the current preferences.
func (c *Controller) Settings() settings.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Prefill returns the text the custom input was filled with on Open.
func (c *Controller) Prefill() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefill
}

// View returns the last successful summary.
func (c *Controller) View() (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == nil {
		return View{}, false
	}
	return *c.view, true
}

// Open loads settings and picks up stored text. Failures are logged.
func (c *Controller) Open(ctx context.Context) {
	if c.store != nil {
		st, err := c.store.Load(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("could not load settings")
		} else {
			c.mu.Lock()
			c.settings = st
			c.mu.Unlock()
		}
	}

	resp, err := c.bg.Send(ctx, protocol.GetStoredText{})
	if err != nil {
		log.Debug().Err(err).Msg("no stored text found")
		return
	}
	tr, ok := resp.(protocol.TextResponse)
	if !ok || utf8.RuneCountInString(tr.Text) <= PrefillMinChars {
		return
	}
	c.mu.Lock()
	c.prefill = tr.Text
	c.mu.Unlock()
	c.notices.Show(notice.Info, MsgPreloaded, notice.NotifyTTL)
}

// SetFormat changes and persists the format.
func (c *Controller) SetFormat(ctx context.Context, f summarize.Format) error {
	return c.update(ctx, func(s *settings.Settings) { s.Format = f })
}

// SetDetailLevel changes and persists the detail level.
func (c *Controller) SetDetailLevel(ctx context.Context, d summarize.DetailLevel) error {
	return c.update(ctx, func(s *settings.Settings) { s.DetailLevel = d })
}

// ToggleTheme flips and persists the theme.
func (c *Controller) ToggleTheme(ctx context.Context) (settings.Theme, error) {
	var t settings.Theme
	err := c.update(ctx, func(s *settings.Settings) {
		s.Theme = s.Theme.Toggle()
		t = s.Theme
	})
	return t, err
}

func (c *Controller) update(ctx context.Context, mutate func(*settings.Settings)) error {
	c.mu.Lock()
	next := c.settings
	mutate(&next)
	next, err := next.Normalize()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.settings = next
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, next); err != nil {
		log.Warn().Err(err).Msg("could not save settings")
		return err
	}
	return nil
}

// SummarizeSelected summarizes the active tab's selection, or its main
// content when nothing is selected.
func (c *Controller) SummarizeSelected(ctx context.Context) (View, error) {
	text, err := c.pageText(ctx)
	if err != nil {
		c.showError(err.Error())
		return View{}, err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < summarize.MinTextChars {
		c.showError(MsgNoText)
		return View{}, errors.New(MsgNoText)
	}
	return c.SummarizeText(ctx, text)
}

func (c *Controller) pageText(ctx context.Context) (string, error) {
	resp, err := c.bg.Send(ctx, protocol.GetTabContent{})
	if err != nil {
		log.Warn().Err(err).Msg("get tab content")
		return "", errors.New(MsgAccessFailed)
	}
	tc, ok := resp.(protocol.TabContentResponse)
	if !ok {
		return "", errors.New(MsgAccessFailed)
	}
	if !tc.Success || tc.Data == nil {
		switch tc.Error {
		case browser.MsgRestricted:
			return "", errors.New(browser.MsgRestricted)
		case MsgNoActiveTab:
			return "", errors.New(MsgNoActiveTab)
		}
		log.Warn().Str("error", tc.Error).Msg("could not read tab")
		return "", errors.New(MsgAccessFailed)
	}
	if sel := strings.TrimSpace(tc.Data.Selection); sel != "" {
		return sel, nil
	}
	return tc.Data.Content, nil
}

// SummarizeCustom summarizes text typed into the panel.
func (c *Controller) SummarizeCustom(ctx context.Context, text string) (View, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		c.showError(MsgEnterText)
		return View{}, errors.New(MsgEnterText)
	}
	if utf8.RuneCountInString(text) < summarize.MinTextChars {
		c.showError(MsgCustomTooShort)
		return View{}, errors.New(MsgCustomTooShort)
	}
	return c.SummarizeText(ctx, text)
}

// SummarizeText sends text with the current settings and renders the result.
func (c *Controller) SummarizeText(ctx context.Context, text string) (View, error) {
	st := c.Settings()
	c.mu.Lock()
	c.view = nil
	c.mu.Unlock()
	c.notices.Dismiss()

	res, err := c.client.Summarize(ctx, summarize.Request{Text: text, Format: st.Format, DetailLevel: st.DetailLevel})
	if err != nil {
		log.Error().Err(err).Msg("summarization error")
		if summarize.IsUnreachable(err) {
			c.showError(summarize.MsgUnreachable)
		} else {
			c.showError(apperr.MessageOf(err))
		}
		return View{}, err
	}
	v := View{Summary: res.Summary, Stats: res.Stats()}
	c.mu.Lock()
	c.view = &v
	c.mu.Unlock()
	return v, nil
}

func (c *Controller) showError(msg string) {
	c.notices.Show(notice.Error, msg, notice.ErrorTTL)
}
