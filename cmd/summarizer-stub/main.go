// Command summarizer-stub is a deterministic stand-in for the summarization
// service, used for local runs and system tests.
package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8000"
	}
	log.Info().Str("addr", addr).Msg("summarizer stub listening")
	srv := &http.Server{Addr: addr, Handler: newRouter(), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("summarizer stub stopped")
	}
}
