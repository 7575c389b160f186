package app

import "time"

// Config holds runtime configuration for contentsnap.
type Config struct {
	// Summarization service
	APIURL string

	// Storage
	DataDir string

	// Bridge
	Addr string

	// Page fetching
	UserAgent     string
	FetchTimeout  time.Duration
	FetchAttempts int
	Extractor     string

	// Behavior
	Verbose bool
}

// Defaults used when neither flags, file nor environment set a value.
const (
	DefaultAPIURL        = "http://localhost:8000"
	DefaultDataDir       = ".contentsnap"
	DefaultAddr          = "127.0.0.1:8765"
	DefaultUserAgent     = "contentsnap/1.0 (+https://github.com/hyperifyio/contentsnap)"
	DefaultFetchTimeout  = 15 * time.Second
	DefaultFetchAttempts = 2
	DefaultExtractor     = "heuristic"
)

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.FetchAttempts == 0 {
		cfg.FetchAttempts = DefaultFetchAttempts
	}
	if cfg.Extractor == "" {
		cfg.Extractor = DefaultExtractor
	}
}
