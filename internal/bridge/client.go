package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/protocol"
)

// Client is the extension side of a connection. Requests from the host are
// answered by Handler; events go to OnEvent.
type Client struct {
	conn    *websocket.Conn
	handler protocol.Handler
	onEvent func(action protocol.Action, body json.RawMessage)

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string]chan json.RawMessage
	done    chan struct{}
}

// DialOptions describe the peer being connected.
type DialOptions struct {
	Role    string
	TabID   int
	URL     string
	Title   string
	Handler protocol.Handler
	OnEvent func(action protocol.Action, body json.RawMessage)
}

// Dial connects to the bridge at baseURL (http or ws scheme) and starts
// reading. Close releases the connection.
func Dial(ctx context.Context, baseURL string, opts DialOptions) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse bridge url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := url.Values{}
	q.Set("role", opts.Role)
	if opts.Role == RoleContent {
		q.Set("tab", strconv.Itoa(opts.TabID))
		q.Set("url", opts.URL)
		q.Set("title", opts.Title)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}
	conn.SetReadLimit(maxFrameBytes)
	c := &Client{
		conn:    conn,
		handler: opts.Handler,
		onEvent: opts.OnEvent,
		pending: map[string]chan json.RawMessage{},
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

// Send delivers req to the background and decodes the reply into the
// response type matching req's action.
func (c *Client) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	raw, err := c.SendRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeReply(req.Action(), raw)
}

// SendRaw delivers req and returns the undecoded reply.
func (c *Client) SendRaw(ctx context.Context, req protocol.Request) (json.RawMessage, error) {
	body, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()
	if err := c.write(Frame{ID: id, Body: body}); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	select {
	case reply := <-ch:
		return reply, nil
	case <-c.done:
		return nil, errPeerGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("bridge client read")
			}
			return
		}
		switch {
		case f.Reply:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- f.Body:
				default:
				}
			}
		case f.ID == "":
			c.event(f.Body)
		default:
			go c.answer(f)
		}
	}
}

func (c *Client) event(body json.RawMessage) {
	var tag struct {
		Action protocol.Action `json:"action"`
	}
	if err := json.Unmarshal(body, &tag); err != nil {
		log.Warn().Err(err).Msg("dropping malformed event")
		return
	}
	if c.onEvent != nil {
		c.onEvent(tag.Action, body)
	}
}

func (c *Client) answer(f Frame) {
	var body json.RawMessage
	if c.handler == nil {
		body, _ = json.Marshal(protocol.Unknown())
	} else {
		body = protocol.Dispatch(context.Background(), c.handler, protocol.Sender{}, f.Body)
	}
	if err := c.write(Frame{ID: f.ID, Reply: true, Body: body}); err != nil {
		log.Debug().Err(err).Msg("write reply")
	}
}

// decodeReply picks the response type a background action answers with.
// Actions whose answer carries its own error field keep their type.
func decodeReply(action protocol.Action, raw json.RawMessage) (protocol.Response, error) {
	if err := replyError(raw); err != nil && (err.Error() == protocol.UnknownAction || !carriesError(action)) {
		return protocol.ErrorResponse{Error: err.Error()}, nil
	}
	switch action {
	case protocol.ActionGetStoredText:
		return protocol.DecodeResponse[protocol.TextResponse](raw)
	case protocol.ActionGetTabContent:
		return protocol.DecodeResponse[protocol.TabContentResponse](raw)
	case protocol.ActionSummarizeSelectedText:
		return protocol.DecodeResponse[protocol.SummarizeSelectedResponse](raw)
	case protocol.ActionGetTabState:
		return protocol.DecodeResponse[protocol.TabStateResponse](raw)
	case protocol.ActionCheckServerStatus:
		return protocol.DecodeResponse[protocol.ServerStatusResponse](raw)
	case protocol.ActionGetSelectedText:
		return protocol.DecodeResponse[protocol.SelectedTextResponse](raw)
	case protocol.ActionGetPageContent:
		return protocol.DecodeResponse[protocol.PageContentResponse](raw)
	case protocol.ActionGetContextMenus:
		return protocol.DecodeResponse[protocol.ContextMenusResponse](raw)
	}
	return protocol.DecodeResponse[protocol.SuccessResponse](raw)
}

func carriesError(action protocol.Action) bool {
	switch action {
	case protocol.ActionGetTabContent, protocol.ActionSummarizeSelectedText, protocol.ActionCheckServerStatus:
		return true
	}
	return false
}
