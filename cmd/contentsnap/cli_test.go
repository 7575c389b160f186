package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/contentsnap/internal/app"
	"github.com/hyperifyio/contentsnap/internal/bridge"
	"github.com/hyperifyio/contentsnap/internal/content"
	"github.com/hyperifyio/contentsnap/internal/dom"
	"github.com/hyperifyio/contentsnap/internal/popup"
)

const longText = "ContentSnap captures the text of a page and sends it to a local service for a short summary."

// stubService answers /health and /summarize like the local model server.
func stubService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/summarize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text        string `json:"text"`
			Format      string `json:"format"`
			DetailLevel string `json:"detail_level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"summary": "- short summary (" + req.Format + ", " + req.DetailLevel + ")"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// isolateEnv blanks every variable the CLI reads so the host environment
// cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		app.EnvAPIURL, app.EnvDataDir, app.EnvAddr, app.EnvUserAgent,
		app.EnvFetchTimeout, app.EnvFetchAttempts, app.EnvExtractor, app.EnvVerbose,
	} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newCLIApp(strings.NewReader(stdin), &out).Run(append([]string{"contentsnap"}, args...))
	return out.String(), err
}

func TestSettings_SetAndShow(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	out, err := run(t, "", "--data-dir", dir, "settings", "show")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "bullet_points", got["format"])
	assert.Equal(t, "medium", got["detailLevel"])
	assert.Equal(t, "light", got["theme"])
	assert.Equal(t, true, got["contextMenu"])

	_, err = run(t, "", "--data-dir", dir, "settings", "set", "format", "paragraph")
	require.NoError(t, err)
	_, err = run(t, "", "--data-dir", dir, "settings", "set", "theme", "dark")
	require.NoError(t, err)

	out, err = run(t, "", "--data-dir", dir, "settings", "show")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "paragraph", got["format"])
	assert.Equal(t, "dark", got["theme"])
}

func TestSettings_SetRejectsUnknownValues(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	_, err := run(t, "", "--data-dir", dir, "settings", "set", "format", "haiku")
	require.Error(t, err)
	_, err = run(t, "", "--data-dir", dir, "settings", "set", "colour", "red")
	require.Error(t, err)
	_, err = run(t, "", "--data-dir", dir, "settings", "set", "format")
	require.Error(t, err)
}

func TestSummarize_TextFlagUsesStoredSettings(t *testing.T) {
	isolateEnv(t)
	srv := stubService(t)
	dir := t.TempDir()
	md := filepath.Join(dir, "summary.md")

	_, err := run(t, "", "--data-dir", dir, "settings", "set", "detailLevel", "low")
	require.NoError(t, err)

	out, err := run(t, "", "--data-dir", dir, "--api-url", srv.URL, "summarize", "--text", longText, "--format", "tldr", "--markdown", md)
	require.NoError(t, err)
	assert.Contains(t, out, "- short summary (tldr, low)")
	assert.Contains(t, out, "words •")

	b, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(b), "short summary")
}

func TestSummarize_ReadsStdin(t *testing.T) {
	isolateEnv(t)
	srv := stubService(t)

	out, err := run(t, longText, "--data-dir", t.TempDir(), "--api-url", srv.URL, "summarize", "--json")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "bullet_points", got["format"])
	assert.Equal(t, "medium", got["detail_level"])
	assert.NotZero(t, got["word_count"])
}

func TestSummarize_ShortTextNeverReachesService(t *testing.T) {
	isolateEnv(t)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	_, err := run(t, "", "--data-dir", t.TempDir(), "--api-url", srv.URL, "summarize", "--text", "too short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 50 characters")
	assert.Zero(t, hits)
}

func TestSummarize_UnreachableService(t *testing.T) {
	isolateEnv(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := run(t, "", "--data-dir", t.TempDir(), "--api-url", url, "summarize", "--text", longText)
	require.Error(t, err)
	assert.Equal(t, "Could not connect to the summarization service. Please check if the server is running.", err.Error())
}

func TestHealth(t *testing.T) {
	isolateEnv(t)
	srv := stubService(t)

	out, err := run(t, "", "--data-dir", t.TempDir(), "--api-url", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, `"online": true`)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	out, err = run(t, "", "--data-dir", t.TempDir(), "--api-url", down.URL, "health")
	require.Error(t, err)
	assert.Contains(t, out, `"status": 503`)
}

func TestEnvFileAndFlagPrecedence(t *testing.T) {
	isolateEnv(t)
	srv := stubService(t)
	dir := t.TempDir()

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(app.EnvAPIURL+"="+srv.URL+"\n"), 0o600))
	cfgFile := filepath.Join(dir, "contentsnap.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("api:\n  url: http://127.0.0.1:1\n"), 0o600))

	// env wins over the file
	_, err := run(t, "", "--config", cfgFile, "--env-file", envFile, "--data-dir", dir, "health")
	require.NoError(t, err)

	// flags win over env
	_, err = run(t, "", "--config", cfgFile, "--env-file", envFile, "--data-dir", dir, "--api-url", "http://127.0.0.1:1", "health")
	require.Error(t, err)
}

func TestExtract_FileAsJSON(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	html := `<html><head><title>Field Notes</title></head><body>
<nav>Home About</nav>
<article><p>` + longText + `</p><p>Second paragraph with more words for the reader.</p></article>
</body></html>`
	require.NoError(t, os.WriteFile(page, []byte(html), 0o600))

	out, err := run(t, "", "--data-dir", dir, "extract", "--json", page)
	require.NoError(t, err)
	var doc struct {
		Title string
		Text  string
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Field Notes", doc.Title)
	assert.Contains(t, doc.Text, "Second paragraph")

	out, err = run(t, "", "--data-dir", dir, "extract", page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Field Notes\n1 min read\n\n"), out)

	_, err = run(t, "", "--data-dir", dir, "extract")
	require.Error(t, err)
}

// startHost runs a host's bridge on an httptest server.
func startHost(t *testing.T, apiURL string) (*app.App, string) {
	t.Helper()
	host, err := app.New(app.Config{DataDir: t.TempDir(), APIURL: apiURL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })
	srv := httptest.NewServer(bridge.Router(host.Hub))
	t.Cleanup(srv.Close)
	return host, srv.URL
}

func TestPopup_CustomText(t *testing.T) {
	isolateEnv(t)
	stub := stubService(t)
	_, bridgeURL := startHost(t, stub.URL)

	out, err := run(t, "", "--data-dir", t.TempDir(), "--api-url", stub.URL, "popup", "--bridge", bridgeURL, "--text", longText)
	require.NoError(t, err)
	assert.Contains(t, out, "short summary")
}

func TestPopup_NoActiveTab(t *testing.T) {
	isolateEnv(t)
	stub := stubService(t)
	_, bridgeURL := startHost(t, stub.URL)

	_, err := run(t, "", "--data-dir", t.TempDir(), "--api-url", stub.URL, "popup", "--bridge", bridgeURL)
	require.Error(t, err)
	assert.Equal(t, popup.MsgNoActiveTab, err.Error())
}

func TestPopup_SummarizesAttachedTab(t *testing.T) {
	isolateEnv(t)
	stub := stubService(t)
	host, bridgeURL := startHost(t, stub.URL)

	doc, err := dom.ParseString("<html><head><title>Story</title></head><body><article><p>" + longText + "</p></article></body></html>")
	require.NoError(t, err)
	page := content.New(doc, "https://news.test/story")
	tab, err := bridge.Dial(context.Background(), bridgeURL, bridge.DialOptions{
		Role: bridge.RoleContent, TabID: 3, URL: page.URL(), Title: page.Title(), Handler: page,
	})
	require.NoError(t, err)
	defer tab.Close()
	require.Eventually(t, func() bool { return len(host.Hub.Tabs()) == 1 }, 2*time.Second, 10*time.Millisecond)

	out, err := run(t, "", "--data-dir", t.TempDir(), "--api-url", stub.URL, "popup", "--bridge", bridgeURL)
	require.NoError(t, err)
	assert.Contains(t, out, "short summary (bullet_points, medium)")
}
