package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hyperifyio/contentsnap/internal/app"
	"github.com/hyperifyio/contentsnap/internal/bridge"
	"github.com/hyperifyio/contentsnap/internal/content"
	"github.com/hyperifyio/contentsnap/internal/export"
	"github.com/hyperifyio/contentsnap/internal/notice"
	"github.com/hyperifyio/contentsnap/internal/popup"
	"github.com/hyperifyio/contentsnap/internal/protocol"
	"github.com/hyperifyio/contentsnap/internal/selection"
	"github.com/hyperifyio/contentsnap/internal/settings"
	"github.com/hyperifyio/contentsnap/internal/summarize"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(in io.Reader, out io.Writer) *cli.App {
	// -v is --verbose.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}

	a := &cli.App{
		Name:    "contentsnap",
		Usage:   "Capture page text and summarize it through a local service",
		Version: app.BuildVersion,
		Reader:  in,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a YAML or JSON config file"},
			&cli.StringSliceFlag{Name: "env-file", Usage: "Dotenv file to load before reading the environment (repeatable)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Verbose console output"},
			&cli.StringFlag{Name: "api-url", Usage: "Summarization service base URL"},
			&cli.StringFlag{Name: "data-dir", Usage: "Directory holding settings.db"},
			&cli.StringFlag{Name: "addr", Usage: "Bridge listen address"},
			&cli.StringFlag{Name: "user-agent", Usage: "User-Agent for page fetches and service calls"},
		},
		Commands: []*cli.Command{
			serveCmd(),
			extractCmd(),
			summarizeCmd(),
			healthCmd(),
			settingsCmd(),
			attachCmd(),
			popupCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	a.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return a
}

// loadConfig layers the config file, then the environment, then explicit
// flags.
func loadConfig(c *cli.Context) (app.Config, error) {
	if err := app.LoadEnvFiles(c.StringSlice("env-file")...); err != nil {
		return app.Config{}, fmt.Errorf("load env files: %w", err)
	}
	var cfg app.Config
	if p := c.String("config"); p != "" {
		fc, err := app.LoadConfigFile(p)
		if err != nil {
			return app.Config{}, err
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	if c.IsSet("api-url") {
		cfg.APIURL = c.String("api-url")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return cfg, nil
}

// openApp loads the configuration, lets edit adjust it and opens the host.
func openApp(c *cli.Context, edit func(*app.Config)) (*app.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if edit != nil {
		edit(&cfg)
	}
	return app.New(cfg)
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the background host and the extension bridge",
		Action: func(c *cli.Context) error {
			a, err := openApp(c, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
}

func extractCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Print the main content of a page",
		ArgsUsage: "<url|file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "extractor", Usage: "heuristic or readability"},
			&cli.BoolFlag{Name: "json", Usage: "Print title, url and text as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("extract needs exactly one source")
			}
			a, err := openApp(c, func(cfg *app.Config) {
				if c.IsSet("extractor") {
					cfg.Extractor = c.String("extractor")
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Extract(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, doc)
			}
			if doc.Title != "" {
				fmt.Fprintf(c.App.Writer, "%s\n", doc.Title)
			}
			fmt.Fprintf(c.App.Writer, "%d min read\n\n", content.ReadingTime(doc.Text))
			fmt.Fprintln(c.App.Writer, doc.Text)
			return nil
		},
	}
}

func summarizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Summarize text from --text, a page or file, or stdin",
		ArgsUsage: "[url|file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Text to summarize"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "bullet_points, paragraph, tldr, simplified or detailed"},
			&cli.StringFlag{Name: "detail", Aliases: []string{"d"}, Usage: "low, medium or high"},
			&cli.StringFlag{Name: "markdown", Usage: "Also write the summary as Markdown to this path"},
			&cli.StringFlag{Name: "pdf", Usage: "Also write the summary as PDF to this path"},
			&cli.BoolFlag{Name: "json", Usage: "Print the summary as JSON"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := app.SummarizeOptions{
				Format:      summarize.Format(c.String("format")),
				DetailLevel: summarize.DetailLevel(c.String("detail")),
			}
			var text string
			switch {
			case c.IsSet("text"):
				text = c.String("text")
			case c.NArg() > 0:
				doc, err := a.Extract(c.Context, c.Args().First())
				if err != nil {
					return err
				}
				text, opts.Title, opts.SourceURL = doc.Text, doc.Title, doc.URL
			default:
				b, err := io.ReadAll(c.App.Reader)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(b)
			}

			sum, err := a.Summarize(c.Context, text, opts)
			if err != nil {
				if summarize.IsUnreachable(err) {
					return errors.New(summarize.MsgUnreachable)
				}
				return err
			}
			if p := c.String("markdown"); p != "" {
				if err := export.WriteMarkdown(sum, p); err != nil {
					return err
				}
			}
			if p := c.String("pdf"); p != "" {
				if err := export.WritePDF(sum, p); err != nil {
					return err
				}
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{
					"summary":           sum.Text,
					"format":            sum.Format,
					"detail_level":      sum.DetailLevel,
					"word_count":        sum.Stats.WordCount,
					"compression_ratio": sum.Stats.CompressionRatio,
				})
			}
			fmt.Fprintf(c.App.Writer, "%s\n\n%s\n", sum.Text, sum.Stats)
			return nil
		},
	}
}

func healthCmd() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Probe the summarization service",
		Action: func(c *cli.Context) error {
			a, err := openApp(c, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			h := a.Health(c.Context)
			if err := outputJSON(c.App.Writer, map[string]any{
				"online": h.Online,
				"status": h.Status,
				"error":  h.Error,
			}); err != nil {
				return err
			}
			if !h.Online {
				return errors.New("summarization service offline")
			}
			return nil
		},
	}
}

func settingsCmd() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change stored preferences",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective preferences",
				Action: func(c *cli.Context) error {
					a, err := openApp(c, nil)
					if err != nil {
						return err
					}
					defer a.Close()
					st, err := a.Settings.Load(c.Context)
					if err != nil {
						return err
					}
					return outputJSON(c.App.Writer, settingsView(st))
				},
			},
			{
				Name:      "set",
				Usage:     "Change one preference",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("settings set needs a key and a value; keys: %s", strings.Join(settings.Keys(), ", "))
					}
					a, err := openApp(c, nil)
					if err != nil {
						return err
					}
					defer a.Close()
					if err := a.Settings.Set(c.Context, c.Args().Get(0), c.Args().Get(1)); err != nil {
						return err
					}
					st, err := a.Settings.Load(c.Context)
					if err != nil {
						return err
					}
					return outputJSON(c.App.Writer, settingsView(st))
				},
			},
		},
	}
}

// attachCmd loads a page and connects it to a running host as a tab, so the
// popup and context menu entries have something to read.
func attachCmd() *cli.Command {
	return &cli.Command{
		Name:      "attach",
		Usage:     "Load a page and connect it to the bridge as a tab",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tab", Value: 1, Usage: "Tab id to register as"},
			&cli.StringFlag{Name: "select", Usage: "Text to report as the current selection"},
			&cli.BoolFlag{Name: "quick", Usage: "Send the selection to the popup right away (Ctrl+Shift+S)"},
			&cli.StringFlag{Name: "bridge", Usage: "Bridge base URL (defaults to http://<addr>)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("attach needs a page url")
			}
			a, err := openApp(c, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, pg, err := a.Fetcher.Document(ctx, c.Args().First())
			if err != nil {
				return err
			}
			page := content.New(doc, pg.URL)
			client, err := bridge.Dial(ctx, bridgeURL(c, a), bridge.DialOptions{
				Role:    bridge.RoleContent,
				TabID:   c.Int("tab"),
				URL:     page.URL(),
				Title:   page.Title(),
				Handler: page,
			})
			if err != nil {
				return err
			}
			defer client.Close()
			log.Info().Int("tab", c.Int("tab")).Str("url", page.URL()).Msg("tab attached")

			board := notice.NewBoard()
			tracker := selection.New(logSurface{}, client, board)
			page.UseSelection(tracker.Selection)
			if sel := c.String("select"); sel != "" {
				tracker.PointerUp(sel, 0, 0)
			}
			if c.Bool("quick") {
				tracker.KeyDown(ctx, "s", selection.Modifiers{Ctrl: true, Shift: true})
				if n, ok := board.Current(); ok {
					fmt.Fprintln(c.App.Writer, n.Message)
				}
			}

			select {
			case <-ctx.Done():
			case <-client.Done():
				return errors.New("bridge closed the connection")
			}
			return nil
		},
	}
}

// popupCmd opens the panel against a running host. --text wins, then text
// stored by the background, then the active tab.
func popupCmd() *cli.Command {
	return &cli.Command{
		Name:  "popup",
		Usage: "Summarize stored text or the active tab through the bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Custom text to summarize instead"},
			&cli.StringFlag{Name: "bridge", Usage: "Bridge base URL (defaults to http://<addr>)"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := bridge.Dial(c.Context, bridgeURL(c, a), bridge.DialOptions{
				Role: bridge.RolePopup,
				OnEvent: func(action protocol.Action, _ json.RawMessage) {
					log.Debug().Str("action", string(action)).Msg("event")
				},
			})
			if err != nil {
				return err
			}
			defer client.Close()

			ctl := popup.New(client, a.Client, a.Settings, nil)
			ctl.Open(c.Context)

			var v popup.View
			switch {
			case c.IsSet("text"):
				v, err = ctl.SummarizeCustom(c.Context, c.String("text"))
			case ctl.Prefill() != "":
				v, err = ctl.SummarizeText(c.Context, ctl.Prefill())
			default:
				v, err = ctl.SummarizeSelected(c.Context)
			}
			if err != nil {
				if n, ok := ctl.Notices().Current(); ok {
					return errors.New(n.Message)
				}
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s\n\n%s\n", v.Summary, v.Stats)
			return nil
		},
	}
}

// logSurface stands in for the page overlay.
type logSurface struct{}

func (logSurface) ShowAffordance(a selection.Affordance) {
	log.Debug().Uint64("seq", a.Seq).Int("chars", a.Chars).Msg("summarize affordance shown")
}

func (logSurface) RemoveAffordance(a selection.Affordance) {
	log.Debug().Uint64("seq", a.Seq).Msg("summarize affordance removed")
}

func bridgeURL(c *cli.Context, a *app.App) string {
	if u := c.String("bridge"); u != "" {
		return u
	}
	return "http://" + a.Config().Addr
}

func settingsView(st settings.Settings) map[string]any {
	return map[string]any{
		settings.KeyFormat:      st.Format,
		settings.KeyDetailLevel: st.DetailLevel,
		settings.KeyTheme:       st.Theme,
		settings.KeyContextMenu: st.ContextMenu,
	}
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
