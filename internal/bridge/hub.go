package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/apperr"
	"github.com/hyperifyio/contentsnap/internal/browser"
	"github.com/hyperifyio/contentsnap/internal/metrics"
	"github.com/hyperifyio/contentsnap/internal/protocol"
)

const (
	writeWait = 10 * time.Second

	// maxFrameBytes bounds one inbound frame. Page content is clamped well
	// below this before it is sent.
	maxFrameBytes = 1 << 20
)

// extensionSchemes are the origins browser extensions connect from.
var extensionSchemes = []string{"chrome-extension://", "moz-extension://", "safari-web-extension://"}

// checkOrigin admits extension pages and clients that send no Origin, such
// as the CLI. Web pages are refused.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	origin = strings.ToLower(origin)
	for _, s := range extensionSchemes {
		if strings.HasPrefix(origin, s) {
			return true
		}
	}
	log.Warn().Str("origin", origin).Msg("refusing websocket origin")
	return false
}

// Lifecycle receives tab events derived from peer connections.
type Lifecycle interface {
	TabRemoved(tabID int)
	TabUpdated(tabID int, complete bool, pageURL string)
}

// Hub tracks connected peers and implements browser.Browser on top of them.
type Hub struct {
	upgrader websocket.Upgrader

	mu        sync.Mutex
	handler   protocol.Handler
	lifecycle Lifecycle
	tabs      map[int]*peer
	popups    map[*peer]struct{}
	active    int
}

var _ browser.Browser = (*Hub)(nil)

// NewHub returns a hub with no handler attached.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		tabs:   map[int]*peer{},
		popups: map[*peer]struct{}{},
	}
}

// Attach sets the handler peer requests are dispatched to and the receiver
// of tab lifecycle events. lc may be nil.
func (h *Hub) Attach(handler protocol.Handler, lc Lifecycle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
	h.lifecycle = lc
}

type peer struct {
	conn *websocket.Conn
	role string
	tab  browser.Tab

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
	done    chan struct{}
}

func newPeer(conn *websocket.Conn, role string, tab browser.Tab) *peer {
	return &peer{conn: conn, role: role, tab: tab, pending: map[string]chan json.RawMessage{}, done: make(chan struct{})}
}

func (p *peer) write(f Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(f)
}

// request sends body and waits for the matching reply.
func (p *peer) request(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.write(Frame{ID: id, Body: body}); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	select {
	case reply := <-ch:
		return reply, nil
	case <-p.done:
		return nil, errPeerGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *peer) deliver(f Frame) {
	p.mu.Lock()
	ch, ok := p.pending[f.ID]
	p.mu.Unlock()
	if !ok {
		log.Debug().Str("id", f.ID).Msg("reply without pending request")
		return
	}
	select {
	case ch <- f.Body:
	default:
	}
}

// ServeWS upgrades a peer connection and runs its read loop until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role := q.Get("role")
	var tab browser.Tab
	switch role {
	case RoleContent:
		id, err := strconv.Atoi(q.Get("tab"))
		if err != nil || id <= 0 {
			http.Error(w, "content peers need a positive tab id", http.StatusBadRequest)
			return
		}
		tab = browser.Tab{ID: id, URL: q.Get("url"), Title: q.Get("title")}
	case RolePopup:
	default:
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	p := newPeer(conn, role, tab)
	h.register(p)
	defer h.unregister(p)
	h.readLoop(p)
}

func (h *Hub) register(p *peer) {
	h.mu.Lock()
	var replaced *peer
	navigated := false
	if p.role == RoleContent {
		replaced = h.tabs[p.tab.ID]
		navigated = replaced != nil
		h.tabs[p.tab.ID] = p
		h.active = p.tab.ID
	} else {
		h.popups[p] = struct{}{}
	}
	lc := h.lifecycle
	h.mu.Unlock()

	metrics.BridgePeers.WithLabelValues(p.role).Inc()
	log.Info().Str("role", p.role).Int("tab", p.tab.ID).Str("url", p.tab.URL).Msg("peer connected")
	if replaced != nil {
		_ = replaced.conn.Close()
	}
	if navigated && lc != nil {
		lc.TabUpdated(p.tab.ID, true, p.tab.URL)
	}
}

func (h *Hub) unregister(p *peer) {
	close(p.done)
	_ = p.conn.Close()

	h.mu.Lock()
	removed := false
	if p.role == RoleContent {
		if h.tabs[p.tab.ID] == p {
			delete(h.tabs, p.tab.ID)
			removed = true
			if h.active == p.tab.ID {
				h.active = 0
			}
		}
	} else {
		delete(h.popups, p)
	}
	lc := h.lifecycle
	h.mu.Unlock()

	metrics.BridgePeers.WithLabelValues(p.role).Dec()
	log.Info().Str("role", p.role).Int("tab", p.tab.ID).Msg("peer disconnected")
	if removed && lc != nil {
		lc.TabRemoved(p.tab.ID)
	}
}

func (h *Hub) readLoop(p *peer) {
	for {
		var f Frame
		if err := p.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("role", p.role).Msg("websocket read")
			}
			return
		}
		if f.Reply {
			p.deliver(f)
			continue
		}
		if len(f.Body) == 0 {
			log.Warn().Str("role", p.role).Msg("dropping frame without body")
			continue
		}
		if p.role == RoleContent {
			h.mu.Lock()
			h.active = p.tab.ID
			h.mu.Unlock()
		}
		go h.serveRequest(p, f)
	}
}

func (h *Hub) serveRequest(p *peer, f Frame) {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()

	var body json.RawMessage
	if handler == nil {
		body, _ = json.Marshal(protocol.Unknown())
	} else {
		from := protocol.Sender{TabID: p.tab.ID, URL: p.tab.URL, Title: p.tab.Title}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-p.done:
				cancel()
			case <-ctx.Done():
			}
		}()
		body = protocol.Dispatch(ctx, handler, from, f.Body)
		cancel()
	}
	if f.ID == "" {
		return
	}
	if err := p.write(Frame{ID: f.ID, Reply: true, Body: body}); err != nil {
		log.Debug().Err(err).Msg("write reply")
	}
}

func (h *Hub) tabPeer(tabID int) (*peer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.tabs[tabID]
	if !ok {
		return nil, apperr.New(apperr.CodeAccessFailed, fmt.Sprintf("tab %d is not connected", tabID))
	}
	return p, nil
}

// Tabs lists connected tabs.
func (h *Hub) Tabs() []browser.Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]browser.Tab, 0, len(h.tabs))
	for _, p := range h.tabs {
		out = append(out, p.tab)
	}
	return out
}

// Peers counts connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tabs) + len(h.popups)
}

// ActiveTab is the content peer that connected or spoke last.
func (h *Hub) ActiveTab(context.Context) (browser.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.tabs[h.active]
	if !ok {
		return browser.Tab{}, apperr.New(apperr.CodeNoActiveTab, "no active tab")
	}
	return p.tab, nil
}

// Snapshot asks the tab's content peer for its page content.
func (h *Hub) Snapshot(ctx context.Context, tabID int) (protocol.PageData, error) {
	p, err := h.tabPeer(tabID)
	if err != nil {
		return protocol.PageData{}, err
	}
	body, err := protocol.Encode(protocol.GetPageContent{})
	if err != nil {
		return protocol.PageData{}, err
	}
	reply, err := p.request(ctx, body)
	if err != nil {
		return protocol.PageData{}, apperr.Wrap(apperr.CodeScriptInjection, "could not read page", err)
	}
	if err := replyError(reply); err != nil {
		return protocol.PageData{}, apperr.Wrap(apperr.CodeScriptInjection, err.Error(), err)
	}
	pc, err := protocol.DecodeResponse[protocol.PageContentResponse](reply)
	if err != nil {
		return protocol.PageData{}, err
	}
	return protocol.PageData{Content: pc.Content, Title: pc.Title, URL: pc.URL, Selection: pc.Selection}, nil
}

// OpenPopup pushes the openPopup event to every popup peer.
func (h *Hub) OpenPopup(context.Context) error {
	body, err := protocol.EncodeEvent(protocol.OpenPopup{})
	if err != nil {
		return err
	}
	h.mu.Lock()
	popups := make([]*peer, 0, len(h.popups))
	for p := range h.popups {
		popups = append(popups, p)
	}
	h.mu.Unlock()
	if len(popups) == 0 {
		return apperr.New(apperr.CodeInternal, "no popup connected")
	}
	for _, p := range popups {
		if err := p.write(Frame{Body: body}); err != nil {
			log.Debug().Err(err).Msg("push openPopup")
		}
	}
	return nil
}

// Notify pushes ev to a tab's content peer.
func (h *Hub) Notify(_ context.Context, tabID int, ev protocol.Event) error {
	p, err := h.tabPeer(tabID)
	if err != nil {
		return err
	}
	body, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return p.write(Frame{Body: body})
}
