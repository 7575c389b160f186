// Package selection tracks the user's text selection in a page and manages
// the single "Summarize" affordance shown next to it.
package selection

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/notice"
	"github.com/hyperifyio/contentsnap/internal/protocol"
)

const (
	// AffordanceMinChars is the length a selection must exceed before the
	// affordance appears.
	AffordanceMinChars = 20
	// SummarizeMinChars is the shortest selection quick-summarize accepts.
	SummarizeMinChars = 50
	// AffordanceTimeout hides an untouched affordance.
	AffordanceTimeout = 5 * time.Second
	// AffordanceOffsetY lifts the affordance above the pointer.
	AffordanceOffsetY = 60
)

// Notice texts.
const (
	MsgSelectMore = "Please select at least 50 characters of text to summarize."
	MsgOpening    = "Opening ContentSnap..."
	MsgOpenFailed = "Error opening ContentSnap. Please try again."
)

// State of the tracker.
type State int

const (
	Idle State = iota
	ShowingAffordance
)

func (s State) String() string {
	if s == ShowingAffordance {
		return "showing-affordance"
	}
	return "idle"
}

// Affordance is one rendered "Summarize" bubble.
type Affordance struct {
	Seq   uint64
	X, Y  int
	Chars int
}

// Surface renders affordances. It is called with the tracker lock held and
// must not call back into the tracker.
type Surface interface {
	ShowAffordance(a Affordance)
	RemoveAffordance(a Affordance)
}

// Messenger delivers a request to the background context.
type Messenger interface {
	Send(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

// Modifiers of a key press.
type Modifiers struct {
	Ctrl, Meta, Shift bool
}

// Tracker is safe for concurrent use; the timeout fires on its own goroutine.
type Tracker struct {
	mu        sync.Mutex
	state     State
	selection string
	captured  string
	current   Affordance
	timer     notice.Timer
	seq       uint64

	after   notice.AfterFunc
	surface Surface
	bg      Messenger
	notices *notice.Board
}

// New returns an idle tracker using wall-clock timers.
func New(surface Surface, bg Messenger, notices *notice.Board) *Tracker {
	return NewWithTimer(surface, bg, notices, func(d time.Duration, f func()) notice.Timer {
		return time.AfterFunc(d, f)
	})
}

// NewWithTimer lets tests drive the timeout.
func NewWithTimer(surface Surface, bg Messenger, notices *notice.Board, after notice.AfterFunc) *Tracker {
	if notices == nil {
		notices = notice.NewBoard()
	}
	return &Tracker{surface: surface, bg: bg, notices: notices, after: after}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Selection returns the live, trimmed selection.
func (t *Tracker) Selection() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection
}

// Captured returns the selection the visible affordance was shown for.
func (t *Tracker) Captured() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.captured
}

// Visible returns the shown affordance.
func (t *Tracker) Visible() (Affordance, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.state == ShowingAffordance
}

// PointerUp handles the end of a selection gesture at page coordinates x, y.
func (t *Tracker) PointerUp(text string, x, y int) {
	text = strings.TrimSpace(text)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection = text
	if runeLen(text) <= AffordanceMinChars {
		t.hideLocked()
		return
	}
	t.captured = text
	t.showLocked(x, y-AffordanceOffsetY, runeLen(text))
}

// PointerDown hides the affordance unless the press lands on it.
func (t *Tracker) PointerDown(insideAffordance bool) {
	if insideAffordance {
		return
	}
	t.Hide()
}

// SelectionChanged records the live selection; clearing it hides the
// affordance.
func (t *Tracker) SelectionChanged(text string) {
	text = strings.TrimSpace(text)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection = text
	if text == "" {
		t.hideLocked()
	}
}

// KeyDown handles Escape and the Ctrl/Cmd+Shift+S shortcut.
func (t *Tracker) KeyDown(ctx context.Context, key string, mods Modifiers) {
	switch {
	case key == "Escape":
		t.Hide()
	case (mods.Ctrl || mods.Meta) && mods.Shift && strings.EqualFold(key, "s"):
		t.QuickSummarize(ctx)
	}
}

// ClickAffordance is the affordance button.
func (t *Tracker) ClickAffordance(ctx context.Context) {
	t.QuickSummarize(ctx)
}

// QuickSummarize hands the live selection to the background, which opens
// the popup with it. Short selections only produce a warning notice.
// Failures are reported through notices and never returned.
func (t *Tracker) QuickSummarize(ctx context.Context) {
	text := t.Selection()
	if runeLen(text) < SummarizeMinChars {
		t.notices.Show(notice.Warning, MsgSelectMore, 0)
		return
	}
	if t.bg == nil {
		t.notices.Show(notice.Error, MsgOpenFailed, 0)
		return
	}
	resp, err := t.bg.Send(ctx, protocol.OpenPopupWithText{Text: text})
	if err == nil {
		if e, isErr := resp.(protocol.ErrorResponse); isErr {
			err = errors.New(e.Error)
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("quick summarize failed")
		t.notices.Show(notice.Error, MsgOpenFailed, 0)
		return
	}
	t.Hide()
	t.notices.Show(notice.Success, MsgOpening, 0)
}

// Hide removes the affordance, if visible.
func (t *Tracker) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hideLocked()
}

func (t *Tracker) showLocked(x, y, chars int) {
	t.hideLocked()
	t.seq++
	t.current = Affordance{Seq: t.seq, X: x, Y: y, Chars: chars}
	t.state = ShowingAffordance
	if t.surface != nil {
		t.surface.ShowAffordance(t.current)
	}
	seq := t.seq
	t.timer = t.after(AffordanceTimeout, func() { t.expire(seq) })
}

func (t *Tracker) hideLocked() {
	if t.state != ShowingAffordance {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.surface != nil {
		t.surface.RemoveAffordance(t.current)
	}
	t.state = Idle
	t.current = Affordance{}
}

func (t *Tracker) expire(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == ShowingAffordance && t.current.Seq == seq {
		t.hideLocked()
	}
}

func runeLen(s string) int { return len([]rune(s)) }
