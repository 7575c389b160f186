package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hyperifyio/contentsnap/internal/apperr"
)

type GetStoredText struct{}

type StoreText struct {
	Text string `json:"text"`
}

type ClearStoredText struct{}

type OpenPopupWithText struct {
	Text string `json:"text"`
}

type GetTabContent struct{}

type SummarizeSelectedText struct{}

// UpdateTabState replaces the sender tab's opaque state blob.
type UpdateTabState struct {
	State json.RawMessage `json:"state"`
}

type GetTabState struct {
	TabID int `json:"tabId"`
}

type CheckServerStatus struct{}

type GetContextMenus struct{}

// ContextMenuClicked reports a click on one of the entries listed by
// GetContextMenus, on the sender's tab.
type ContextMenuClicked struct {
	MenuItemID    string `json:"menuItemId"`
	SelectionText string `json:"selectionText,omitempty"`
}

type GetSelectedText struct{}

type GetPageContent struct{}

type HighlightText struct {
	Text string `json:"text"`
}

type ClearHighlights struct{}

func (GetStoredText) Action() Action         { return ActionGetStoredText }
func (StoreText) Action() Action             { return ActionStoreText }
func (ClearStoredText) Action() Action       { return ActionClearStoredText }
func (OpenPopupWithText) Action() Action     { return ActionOpenPopupWithText }
func (GetTabContent) Action() Action         { return ActionGetTabContent }
func (SummarizeSelectedText) Action() Action { return ActionSummarizeSelectedText }
func (UpdateTabState) Action() Action        { return ActionUpdateTabState }
func (GetTabState) Action() Action           { return ActionGetTabState }
func (CheckServerStatus) Action() Action     { return ActionCheckServerStatus }
func (GetContextMenus) Action() Action       { return ActionGetContextMenus }
func (ContextMenuClicked) Action() Action    { return ActionContextMenuClicked }
func (GetSelectedText) Action() Action       { return ActionGetSelectedText }
func (GetPageContent) Action() Action        { return ActionGetPageContent }
func (HighlightText) Action() Action         { return ActionHighlightText }
func (ClearHighlights) Action() Action       { return ActionClearHighlights }

func (GetStoredText) request()         {}
func (StoreText) request()             {}
func (ClearStoredText) request()       {}
func (OpenPopupWithText) request()     {}
func (GetTabContent) request()         {}
func (SummarizeSelectedText) request() {}
func (UpdateTabState) request()        {}
func (GetTabState) request()           {}
func (CheckServerStatus) request()     {}
func (GetContextMenus) request()       {}
func (ContextMenuClicked) request()    {}
func (GetSelectedText) request()       {}
func (GetPageContent) request()        {}
func (HighlightText) request()         {}
func (ClearHighlights) request()       {}

type envelope struct {
	Action Action `json:"action"`
}

// Decode reads a tagged request. Unrecognized tags yield an
// apperr.CodeUnknownAction error; malformed payloads a validation error.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "malformed message", err)
	}
	switch env.Action {
	case ActionGetStoredText:
		return GetStoredText{}, nil
	case ActionClearStoredText:
		return ClearStoredText{}, nil
	case ActionGetTabContent:
		return GetTabContent{}, nil
	case ActionSummarizeSelectedText:
		return SummarizeSelectedText{}, nil
	case ActionCheckServerStatus:
		return CheckServerStatus{}, nil
	case ActionGetContextMenus:
		return GetContextMenus{}, nil
	case ActionGetSelectedText:
		return GetSelectedText{}, nil
	case ActionGetPageContent:
		return GetPageContent{}, nil
	case ActionClearHighlights:
		return ClearHighlights{}, nil
	case ActionStoreText:
		return decodeAs[StoreText](data)
	case ActionOpenPopupWithText:
		return decodeAs[OpenPopupWithText](data)
	case ActionUpdateTabState:
		return decodeAs[UpdateTabState](data)
	case ActionGetTabState:
		return decodeAs[GetTabState](data)
	case ActionHighlightText:
		return decodeAs[HighlightText](data)
	case ActionContextMenuClicked:
		return decodeAs[ContextMenuClicked](data)
	}
	return nil, apperr.NewUnknownAction(string(env.Action))
}

func decodeAs[T Request](data []byte) (Request, error) {
	var r T
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "malformed payload", err)
	}
	return r, nil
}

// Encode writes req with its action tag.
func Encode(req Request) ([]byte, error) {
	return encodeTagged(req.Action(), req)
}

func encodeTagged(action Action, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}
	tag, _ := json.Marshal(action)
	fields["action"] = tag
	return json.Marshal(fields)
}
