package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by contentsnap.
const (
	EnvAPIURL        = "CONTENTSNAP_API_URL"
	EnvDataDir       = "CONTENTSNAP_DATA_DIR"
	EnvAddr          = "CONTENTSNAP_ADDR"
	EnvUserAgent     = "CONTENTSNAP_USER_AGENT"
	EnvFetchTimeout  = "CONTENTSNAP_FETCH_TIMEOUT"
	EnvFetchAttempts = "CONTENTSNAP_FETCH_ATTEMPTS"
	EnvExtractor     = "CONTENTSNAP_EXTRACTOR"
	EnvVerbose       = "CONTENTSNAP_VERBOSE"
)

func envDuration(key string) (time.Duration, bool) {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	return d, err == nil && d > 0
}

func envInt(key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	return n, err == nil && n > 0
}

// envBool reports the value of a boolean variable and whether it was set to
// something recognizable.
func envBool(key string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// ApplyEnvOverrides overrides cfg with every environment variable that is
// set, letting env win over a config file while flags still win over both.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	for key, dst := range map[string]*string{
		EnvAPIURL:    &cfg.APIURL,
		EnvDataDir:   &cfg.DataDir,
		EnvAddr:      &cfg.Addr,
		EnvUserAgent: &cfg.UserAgent,
		EnvExtractor: &cfg.Extractor,
	} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	if d, ok := envDuration(EnvFetchTimeout); ok {
		cfg.FetchTimeout = d
	}
	if n, ok := envInt(EnvFetchAttempts); ok {
		cfg.FetchAttempts = n
	}
	if v, ok := envBool(EnvVerbose); ok {
		cfg.Verbose = v
	}
}
