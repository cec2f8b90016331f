package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTokenMissing is returned when no bearer secret can be loaded.
var ErrTokenMissing = errors.New("auth token missing")

// LoadToken returns the shared bearer secret. An inline token wins over the
// token file. The secret is trimmed and must not be empty.
func LoadToken(cfg AuthConfig) (string, error) {
	if tok := strings.TrimSpace(cfg.Token); tok != "" {
		return tok, nil
	}
	if cfg.TokenFile == "" {
		return "", fmt.Errorf("%w: no auth.token_file configured", ErrTokenMissing)
	}

	data, err := os.ReadFile(filepath.Clean(cfg.TokenFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: token file missing: %s", ErrTokenMissing, cfg.TokenFile)
		}
		return "", fmt.Errorf("read token file %s: %w", cfg.TokenFile, err)
	}

	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("%w: token file is empty: %s", ErrTokenMissing, cfg.TokenFile)
	}
	return tok, nil
}
