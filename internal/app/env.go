package app

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ParseEnvFile reads a dotenv file. Lines are KEY=VALUE, optionally prefixed
// with "export"; blank lines, comments and lines without a key are ignored.
// Matching single or double quotes around a value are removed.
func ParseEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vals := map[string]string{}
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		vals[key] = unquote(strings.TrimSpace(val))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vals, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// LoadEnvFiles copies dotenv files into the process environment. Later files
// win and missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	merged := map[string]string{}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		vals, err := ParseEnvFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		for k, v := range vals {
			merged[k] = v
		}
	}
	for k, v := range merged {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}
