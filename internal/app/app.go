// Package app wires configuration, storage, the summarization client and
// the bridge into a running host, and backs the CLI commands.
package app

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/background"
	"github.com/hyperifyio/contentsnap/internal/bridge"
	"github.com/hyperifyio/contentsnap/internal/export"
	"github.com/hyperifyio/contentsnap/internal/extract"
	"github.com/hyperifyio/contentsnap/internal/fetch"
	"github.com/hyperifyio/contentsnap/internal/settings"
	"github.com/hyperifyio/contentsnap/internal/summarize"
)

// App is a configured host.
type App struct {
	cfg Config

	db       *settings.SQLite
	Settings *settings.Store
	Client   *summarize.Client
	Fetcher  *fetch.Client
	Hub      *bridge.Hub
	Router   *background.Router
}

// New validates cfg and opens the settings database under cfg.DataDir.
func New(cfg Config) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	db, err := settings.OpenSQLite(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	transport := newTransport()
	a := &App{
		cfg:      cfg,
		db:       db,
		Settings: settings.NewStore(db),
		Client: &summarize.Client{
			BaseURL:    cfg.APIURL,
			HTTPClient: &http.Client{Transport: transport},
			UserAgent:  cfg.UserAgent,
		},
		Fetcher: &fetch.Client{
			HTTPClient:        &http.Client{Transport: transport},
			UserAgent:         cfg.UserAgent,
			MaxAttempts:       cfg.FetchAttempts,
			PerRequestTimeout: cfg.FetchTimeout,
		},
		Hub: bridge.NewHub(),
	}
	a.Router = background.New(a.Hub, a.Client, a.Settings)
	a.Hub.Attach(a.Router, a.Router)
	return a, nil
}

// Config returns the effective configuration.
func (a *App) Config() Config { return a.cfg }

// Close releases the settings database.
func (a *App) Close() error {
	return a.db.Close()
}

// Serve seeds default settings on first start and runs the bridge until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if err := a.firstRun(ctx); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	log.Info().Str("api", a.cfg.APIURL).Str("data", a.cfg.DataDir).Str("version", BuildVersion).Msg("contentsnap host starting")
	srv := &bridge.Server{Addr: a.cfg.Addr, Hub: a.Hub}
	return srv.Serve(ctx, ln)
}

// firstRun runs the install hook when no settings have been stored yet.
func (a *App) firstRun(ctx context.Context) error {
	vals, err := a.db.Get(ctx, settings.Keys())
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		return a.Router.Installed(ctx, background.ReasonUpdate, "")
	}
	return a.Router.Installed(ctx, background.ReasonInstall, "")
}

// Extract reads source (an http(s) URL, a file path, or "-" for stdin) and
// runs the configured extractor over it.
func (a *App) Extract(ctx context.Context, source string) (extract.Document, error) {
	ex, ok := extract.ByName(a.cfg.Extractor)
	if !ok {
		return extract.Document{}, fmt.Errorf("unknown extractor %q", a.cfg.Extractor)
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		page, err := a.Fetcher.Get(ctx, source)
		if err != nil {
			return extract.Document{}, fmt.Errorf("fetch %s: %w", source, err)
		}
		return ex.Extract(page.Body, page.URL), nil
	}
	var (
		b   []byte
		err error
	)
	if source == "-" {
		var buf bytes.Buffer
		_, err = buf.ReadFrom(os.Stdin)
		b = buf.Bytes()
	} else {
		b, err = os.ReadFile(source)
	}
	if err != nil {
		return extract.Document{}, fmt.Errorf("read %s: %w", source, err)
	}
	return ex.Extract(b, ""), nil
}

// SummarizeOptions override stored settings for one call.
type SummarizeOptions struct {
	Format      summarize.Format
	DetailLevel summarize.DetailLevel
	Title       string
	SourceURL   string
}

// Summarize sends text with the stored settings, overridden by opts.
func (a *App) Summarize(ctx context.Context, text string, opts SummarizeOptions) (export.Summary, error) {
	st, err := a.Settings.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load settings")
		st = settings.Defaults()
	}
	if opts.Format != "" {
		st.Format = opts.Format
	}
	if opts.DetailLevel != "" {
		st.DetailLevel = opts.DetailLevel
	}
	res, err := a.Client.Summarize(ctx, summarize.Request{Text: text, Format: st.Format, DetailLevel: st.DetailLevel})
	if err != nil {
		return export.Summary{}, err
	}
	return export.Summary{
		Title:       opts.Title,
		SourceURL:   opts.SourceURL,
		Format:      st.Format,
		DetailLevel: st.DetailLevel,
		Text:        res.Summary,
		Stats:       res.Stats(),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Health probes the summarization service.
func (a *App) Health(ctx context.Context) summarize.Health {
	return a.Client.CheckHealth(ctx)
}

// newTransport is shared by the summarization and fetch clients. It bounds
// dialing and handshakes but not whole requests.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
