// Package protocol is the message contract between the background, content
// and popup contexts. Requests form a closed set of variants tagged by an
// action name on the wire; each context handles its subset with a type
// switch and answers anything else with UnknownAction.
package protocol

import (
	"context"
	"encoding/json"
)

// Action is the wire tag of a request.
type Action string

// Background actions.
const (
	ActionGetStoredText         Action = "getStoredText"
	ActionStoreText             Action = "storeText"
	ActionClearStoredText       Action = "clearStoredText"
	ActionOpenPopupWithText     Action = "openPopupWithText"
	ActionGetTabContent         Action = "getTabContent"
	ActionSummarizeSelectedText Action = "summarizeSelectedText"
	ActionUpdateTabState        Action = "updateTabState"
	ActionGetTabState           Action = "getTabState"
	ActionCheckServerStatus     Action = "checkServerStatus"
	ActionGetContextMenus       Action = "getContextMenus"
	ActionContextMenuClicked    Action = "contextMenuClicked"
)

// Content actions.
const (
	ActionGetSelectedText Action = "getSelectedText"
	ActionGetPageContent  Action = "getPageContent"
	ActionHighlightText   Action = "highlightText"
	ActionClearHighlights Action = "clearHighlights"
)

// Events pushed from the background to the extension. They expect no reply.
const (
	EventTextStored Action = "textStored"
	EventOpenPopup  Action = "openPopup"
)

// UnknownAction is the error text answered for unrecognized requests.
const UnknownAction = "Unknown action"

// Request is one of the variants declared in requests.go.
type Request interface {
	Action() Action
	request()
}

// Response is one of the variants declared in responses.go.
type Response interface {
	response()
}

// Sender identifies where a request came from. TabID is zero for requests
// that do not originate in a page (the popup, the CLI).
type Sender struct {
	TabID int    `json:"tabId,omitempty"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// Handler is the single entry point of one context.
type Handler interface {
	Handle(ctx context.Context, from Sender, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, from Sender, req Request) Response

func (f HandlerFunc) Handle(ctx context.Context, from Sender, req Request) Response {
	return f(ctx, from, req)
}

// Dispatch decodes raw, hands it to h and encodes the answer. Decoding
// failures never reach h: they are answered with an ErrorResponse.
func Dispatch(ctx context.Context, h Handler, from Sender, raw []byte) json.RawMessage {
	req, err := Decode(raw)
	var resp Response
	if err != nil {
		resp = ErrorFor(err)
	} else {
		resp = h.Handle(ctx, from, req)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		out, _ = json.Marshal(ErrorResponse{Error: err.Error()})
	}
	return out
}
