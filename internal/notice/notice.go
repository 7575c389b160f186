// Package notice shows transient user-facing messages. A board holds at most
// one notice; showing a new one replaces the old, and every notice dismisses
// itself after its TTL.
package notice

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind selects how a notice is presented.
type Kind string

const (
	Info    Kind = "info"
	Success Kind = "success"
	Warning Kind = "warning"
	Error   Kind = "error"
)

// Default lifetimes.
const (
	ErrorTTL  = 5 * time.Second
	NotifyTTL = 3 * time.Second
)

// Notice is one displayed message.
type Notice struct {
	Seq     uint64
	Kind    Kind
	Message string
}

// Timer is the part of *time.Timer the board uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Board is safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	after   AfterFunc
	current *Notice
	timer   Timer
	seq     uint64
	// OnChange, when set, observes every show and dismissal. visible is
	// false for dismissals.
	OnChange func(n Notice, visible bool)
}

// NewBoard returns a board using wall-clock timers.
func NewBoard() *Board {
	return &Board{after: realAfterFunc}
}

// NewBoardWithTimer lets tests drive dismissal.
func NewBoardWithTimer(after AfterFunc) *Board {
	return &Board{after: after}
}

// Show replaces the current notice. A ttl <= 0 picks the default for kind.
func (b *Board) Show(kind Kind, msg string, ttl time.Duration) Notice {
	if ttl <= 0 {
		ttl = NotifyTTL
		if kind == Error || kind == Warning {
			ttl = ErrorTTL
		}
	}
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.seq++
	n := Notice{Seq: b.seq, Kind: kind, Message: msg}
	b.current = &n
	seq := b.seq
	b.timer = b.after(ttl, func() { b.expire(seq) })
	onChange := b.OnChange
	b.mu.Unlock()

	if kind == Error {
		log.Debug().Str("notice", msg).Msg("error notice shown")
	}
	if onChange != nil {
		onChange(n, true)
	}
	return n
}

// Current returns the visible notice.
func (b *Board) Current() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Notice{}, false
	}
	return *b.current, true
}

// Dismiss hides the current notice, if any.
func (b *Board) Dismiss() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	n := *b.current
	b.current = nil
	onChange := b.OnChange
	b.mu.Unlock()
	if onChange != nil {
		onChange(n, false)
	}
}

// expire dismisses the notice numbered seq unless it was already replaced.
func (b *Board) expire(seq uint64) {
	b.mu.Lock()
	if b.current == nil || b.current.Seq != seq {
		b.mu.Unlock()
		return
	}
	n := *b.current
	b.current = nil
	b.timer = nil
	onChange := b.OnChange
	b.mu.Unlock()
	if onChange != nil {
		onChange(n, false)
	}
}
