// Package fetch downloads HTML pages so they can be loaded as tabs or
// extracted from the command line.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/dom"
)

// DefaultMaxBytes caps page bodies.
const DefaultMaxBytes = 8 << 20

// StatusError is a non-2xx answer.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	if e.Status >= 500 {
		return fmt.Sprintf("server error: %d", e.Status)
	}
	return fmt.Sprintf("unexpected status: %d", e.Status)
}

// Page is a downloaded document.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// Client wraps http.Client with a per-request timeout, bounded retries on
// 5xx and timeouts, and a redirect policy restricted to http(s).
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each attempt. Zero means none.
	PerRequestTimeout time.Duration
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int
	// MaxBytes caps the body size. Zero means DefaultMaxBytes.
	MaxBytes int64

	limiter     chan struct{}
	limiterOnce sync.Once
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirect()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirect()}
}

// Get downloads rawURL, retrying transient failures with a linear backoff.
// Only HTML and XHTML bodies are accepted.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		page, err := c.tryOnce(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !isTransient(err) || i == attempts-1 {
			break
		}
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", i+1).Msg("retrying fetch")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// Document downloads rawURL and parses it.
func (c *Client) Document(ctx context.Context, rawURL string) (*dom.HTML, *Page, error) {
	page, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := dom.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, page, nil
}

func (c *Client) tryOnce(ctx context.Context, rawURL string) (*Page, error) {
	c.acquire()
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", req.URL.Scheme)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode}
	}
	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
	limit := c.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Page{URL: resp.Request.URL.String(), ContentType: contentType, Body: b}, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 500
}

func (c *Client) checkRedirect() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	<-c.limiter
}
