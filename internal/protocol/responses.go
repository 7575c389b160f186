package protocol

import (
	"encoding/json"

	"github.com/hyperifyio/contentsnap/internal/apperr"
)

// PageData is what reading a tab yields.
type PageData struct {
	Content   string `json:"content"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Selection string `json:"selection"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type TabContentResponse struct {
	Success bool      `json:"success"`
	Data    *PageData `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type SummarizeSelectedResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TabStateResponse carries the stored blob, or {} for unknown tabs.
type TabStateResponse struct {
	State json.RawMessage `json:"state"`
}

type ServerStatusResponse struct {
	Success bool   `json:"success"`
	Status  int    `json:"status,omitempty"`
	Online  bool   `json:"online"`
	Error   string `json:"error,omitempty"`
}

type SelectedTextResponse struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type PageContentResponse struct {
	Content   string `json:"content"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Selection string `json:"selection,omitempty"`
}

// MenuItem is one context menu entry. Contexts use the browser's names
// ("selection", "page").
type MenuItem struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Contexts []string `json:"contexts"`
}

// ContextMenusResponse lists the entries to register; it is empty when the
// user turned context menus off.
type ContextMenusResponse struct {
	Items []MenuItem `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (TextResponse) response()              {}
func (SuccessResponse) response()           {}
func (TabContentResponse) response()        {}
func (SummarizeSelectedResponse) response() {}
func (TabStateResponse) response()          {}
func (ServerStatusResponse) response()      {}
func (SelectedTextResponse) response()      {}
func (PageContentResponse) response()       {}
func (ContextMenusResponse) response()      {}
func (ErrorResponse) response()             {}

// ErrorFor maps a decode or handler error to the wire answer.
func ErrorFor(err error) ErrorResponse {
	if apperr.Is(err, apperr.CodeUnknownAction) {
		return ErrorResponse{Error: UnknownAction}
	}
	return ErrorResponse{Error: apperr.MessageOf(err)}
}

// Unknown is the answer for a request the receiving context does not handle.
func Unknown() ErrorResponse {
	return ErrorResponse{Error: UnknownAction}
}

// DecodeResponse reads raw into the response type T.
func DecodeResponse[T Response](raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, apperr.Wrap(apperr.CodeValidation, "malformed response", err)
	}
	return out, nil
}
