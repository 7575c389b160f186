// Package bridge connects extension contexts to the host over WebSocket.
// Content peers register one per tab; popup peers receive popup events.
// Either side may send requests; replies carry the request id.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperifyio/contentsnap/internal/protocol"
)

// Peer roles.
const (
	RoleContent = "content"
	RolePopup   = "popup"
)

// Frame is one WebSocket message. Requests carry an ID when they expect a
// reply; events have none. Body is an action-tagged request or event, or a
// response when Reply is set.
type Frame struct {
	ID    string          `json:"id,omitempty"`
	Reply bool            `json:"reply,omitempty"`
	Body  json.RawMessage `json:"body"`
}

var errPeerGone = errors.New("peer disconnected")

// replyError returns the error carried by a {"error": "..."} response body.
func replyError(body json.RawMessage) error {
	var e protocol.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("malformed reply: %w", err)
	}
	if e.Error != "" {
		return errors.New(e.Error)
	}
	return nil
}
