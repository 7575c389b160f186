package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newCLIApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "contentsnap:", err)
		os.Exit(1)
	}
}
