package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/contentsnap/internal/extract"
)

// FileConfig is the single-file configuration schema.
type FileConfig struct {
	API struct {
		URL string `yaml:"url" json:"url"`
	} `yaml:"api" json:"api"`

	Data struct {
		Dir string `yaml:"dir" json:"dir"`
	} `yaml:"data" json:"data"`

	Bridge struct {
		Addr string `yaml:"addr" json:"addr"`
	} `yaml:"bridge" json:"bridge"`

	Fetch struct {
		UserAgent string        `yaml:"userAgent" json:"userAgent"`
		Timeout   time.Duration `yaml:"timeout" json:"timeout"`
		Attempts  int           `yaml:"attempts" json:"attempts"`
	} `yaml:"fetch" json:"fetch"`

	Extractor string `yaml:"extractor" json:"extractor"`
	Verbose   bool   `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays file values onto fields cfg leaves unset, so
// explicit flags keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.APIURL == "" && fc.API.URL != "" {
		cfg.APIURL = fc.API.URL
	}
	if cfg.DataDir == "" && fc.Data.Dir != "" {
		cfg.DataDir = fc.Data.Dir
	}
	if cfg.Addr == "" && fc.Bridge.Addr != "" {
		cfg.Addr = fc.Bridge.Addr
	}
	if cfg.UserAgent == "" && fc.Fetch.UserAgent != "" {
		cfg.UserAgent = fc.Fetch.UserAgent
	}
	if cfg.FetchTimeout == 0 && fc.Fetch.Timeout > 0 {
		cfg.FetchTimeout = fc.Fetch.Timeout
	}
	if cfg.FetchAttempts == 0 && fc.Fetch.Attempts > 0 {
		cfg.FetchAttempts = fc.Fetch.Attempts
	}
	if cfg.Extractor == "" && fc.Extractor != "" {
		cfg.Extractor = fc.Extractor
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig checks a fully layered configuration.
func ValidateConfig(cfg Config) error {
	u, err := url.Parse(strings.TrimSpace(cfg.APIURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api url must be an http(s) URL, got %q", cfg.APIURL)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("config: data dir is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return errors.New("config: bridge addr is required")
	}
	if cfg.FetchTimeout < 0 || cfg.FetchAttempts < 0 {
		return errors.New("config: negative fetch limits are not allowed")
	}
	if _, ok := extract.ByName(cfg.Extractor); !ok {
		return fmt.Errorf("config: unknown extractor %q", cfg.Extractor)
	}
	return nil
}
