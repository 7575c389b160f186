// Package summarize talks to the external summarization service: one POST per
// request, no retries, and a health probe used only for status display.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/apperr"
	"github.com/hyperifyio/contentsnap/internal/metrics"
)

const (
	// DefaultBaseURL is where the local service listens.
	DefaultBaseURL = "http://localhost:8000"
	// MinTextChars is the shortest text worth sending.
	MinTextChars = 50

	maxErrorBody = 1 << 20
)

// User-facing messages.
const (
	MsgTooShort    = "Text too short. Please enter at least 50 characters."
	MsgUnreachable = "Could not connect to the summarization service. Please check if the server is running."
)

// Request is one summarization call.
type Request struct {
	Text        string
	Format      Format
	DetailLevel DetailLevel
}

// Result is a successful summary.
type Result struct {
	Summary        string
	OriginalLength int
}

// Stats are derived from a Result for display.
type Stats struct {
	WordCount        int
	CompressionRatio int
}

// Stats computes the word count and how much shorter the summary is than
// the original, in percent.
func (r Result) Stats() Stats {
	s := Stats{WordCount: len(strings.Fields(r.Summary))}
	if r.OriginalLength > 0 {
		ratio := (1 - float64(utf8.RuneCountInString(r.Summary))/float64(r.OriginalLength)) * 100
		s.CompressionRatio = int(math.Floor(ratio + 0.5))
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("%d words • %d%% shorter", s.WordCount, s.CompressionRatio)
}

// Health is the outcome of a probe.
type Health struct {
	Online bool
	Status int
	Error  string
}

// Client calls the service. The zero value talks to DefaultBaseURL with a
// client that sets no timeout of its own.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// New returns a client for baseURL.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

func (c *Client) baseURL() string {
	if strings.TrimSpace(c.BaseURL) == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type wireRequest struct {
	Text        string `json:"text"`
	Format      string `json:"format"`
	DetailLevel string `json:"detail_level"`
}

type wireResponse struct {
	Summary string `json:"summary"`
}

type wireError struct {
	Detail json.RawMessage `json:"detail"`
}

// Validate checks req without touching the network, fills defaults and
// puts the enums in their canonical form.
func Validate(req Request) (Request, error) {
	if utf8.RuneCountInString(strings.TrimSpace(req.Text)) < MinTextChars {
		return req, apperr.NewValidation(MsgTooShort)
	}
	var err error
	if strings.TrimSpace(string(req.Format)) == "" {
		req.Format = FormatBulletPoints
	} else if req.Format, err = ParseFormat(string(req.Format)); err != nil {
		return req, err
	}
	if strings.TrimSpace(string(req.DetailLevel)) == "" {
		req.DetailLevel = DetailMedium
	} else if req.DetailLevel, err = ParseDetailLevel(string(req.DetailLevel)); err != nil {
		return req, err
	}
	return req, nil
}

// Summarize validates req and performs exactly one POST to /summarize.
// Errors carry apperr codes: VALIDATION (no request was sent),
// SERVICE_UNREACHABLE (transport failure) or SERVER_REJECTION (non-2xx or an
// unreadable success body).
func (c *Client) Summarize(ctx context.Context, req Request) (*Result, error) {
	req, err := Validate(req)
	if err != nil {
		metrics.SummarizeCalls.WithLabelValues("validation").Inc()
		return nil, err
	}

	body, err := json.Marshal(wireRequest{Text: req.Text, Format: string(req.Format), DetailLevel: string(req.DetailLevel)})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/summarize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	log.Debug().Int("chars", utf8.RuneCountInString(req.Text)).Str("format", string(req.Format)).Str("detail", string(req.DetailLevel)).Msg("summarize request")
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("summarize: %w", ctxErr)
		}
		metrics.SummarizeCalls.WithLabelValues("unreachable").Inc()
		return nil, apperr.Wrap(apperr.CodeServiceUnreachable, MsgUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SummarizeCalls.WithLabelValues("rejected").Inc()
		return nil, rejection(resp)
	}

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.SummarizeCalls.WithLabelValues("rejected").Inc()
		return nil, &apperr.Error{Code: apperr.CodeServerRejection, Message: "invalid response from server", Status: resp.StatusCode, Err: err}
	}
	metrics.SummarizeCalls.WithLabelValues("ok").Inc()
	return &Result{Summary: out.Summary, OriginalLength: utf8.RuneCountInString(req.Text)}, nil
}

// rejection turns a non-2xx response into a SERVER_REJECTION, preferring the
// service's {"detail": "..."} message.
func rejection(resp *http.Response) error {
	generic := fmt.Sprintf("server error: %d", resp.StatusCode)
	e := &apperr.Error{Code: apperr.CodeServerRejection, Message: generic, Status: resp.StatusCode}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return e
	}
	var we wireError
	if err := json.Unmarshal(b, &we); err != nil || len(we.Detail) == 0 {
		return e
	}
	var detail string
	if err := json.Unmarshal(we.Detail, &detail); err == nil && strings.TrimSpace(detail) != "" {
		e.Message = detail
	}
	return e
}

// CheckHealth probes /health. Any failure reports offline; it never returns
// an error.
func (c *Client) CheckHealth(ctx context.Context) Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/health", nil)
	if err != nil {
		return Health{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("health probe failed")
		return Health{Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return Health{Online: resp.StatusCode >= 200 && resp.StatusCode <= 299, Status: resp.StatusCode}
}

// IsUnreachable reports whether err is a transport failure.
func IsUnreachable(err error) bool {
	return apperr.Is(err, apperr.CodeServiceUnreachable)
}

// IsRejection reports whether err came back from the service.
func IsRejection(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Code == apperr.CodeServerRejection
}
