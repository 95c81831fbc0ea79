// Package auth provisions the bearer token protecting the control API.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Auto is the api_token value asking for a generated, persisted token.
const Auto = "auto"

const tokenFileName = "api_token"

// ResolveToken turns the configured api_token into the effective one.
// Auto loads or creates configDir/api_token; any other value is returned as is.
func ResolveToken(configured, configDir string) (string, error) {
	if configured != Auto {
		return configured, nil
	}
	return LoadOrCreateToken(configDir)
}

// LoadOrCreateToken reads the token from configDir/api_token, or generates and
// persists a new 256-bit hex-encoded token if the file is missing or empty.
func LoadOrCreateToken(configDir string) (string, error) {
	path := filepath.Join(configDir, tokenFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	}

	return RotateToken(configDir)
}

// RotateToken generates a new token, replacing the existing one.
func RotateToken(configDir string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := writeToken(configDir, filepath.Join(configDir, tokenFileName), token); err != nil {
		return "", err
	}

	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func writeToken(configDir, path, token string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
