package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/summarize"
)

type summarizeRequest struct {
	Text        string `json:"text"`
	Format      string `json:"format"`
	DetailLevel string `json:"detail_level"`
}

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/summarize", handleSummarize)
	return r
}

func handleSummarize(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Text)) < summarize.MinTextChars {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": summarize.MsgTooShort})
		return
	}
	format, err := summarize.ParseFormat(req.Format)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	level, err := summarize.ParseDetailLevel(req.DetailLevel)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	log.Debug().Str("format", string(format)).Str("detail", string(level)).Int("chars", utf8.RuneCountInString(req.Text)).Msg("summarize")
	writeJSON(w, http.StatusOK, map[string]string{"summary": render(req.Text, format, level)})
}

// render keeps the leading sentences, more of them at higher detail levels.
func render(text string, format summarize.Format, level summarize.DetailLevel) string {
	n := 3
	switch level {
	case summarize.DetailLow:
		n = 1
	case summarize.DetailHigh:
		n = 5
	}
	sentences := splitSentences(text)
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	switch format {
	case summarize.FormatBulletPoints:
		var b strings.Builder
		for i, s := range sentences {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("• ")
			b.WriteString(s)
		}
		return b.String()
	case summarize.FormatTLDR:
		return "TL;DR: " + sentences[0]
	default:
		return strings.Join(sentences, " ")
	}
}

func splitSentences(text string) []string {
	fields := strings.Fields(text)
	var (
		out []string
		cur []string
	)
	for _, f := range fields {
		cur = append(cur, f)
		if strings.HasSuffix(f, ".") || strings.HasSuffix(f, "!") || strings.HasSuffix(f, "?") {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
