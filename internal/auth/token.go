// Package auth keeps the admin token that guards destructive API calls.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// DefaultService is the keyring service name.
	DefaultService = "lightgrid"
	// DefaultEnvVar overrides the keyring when set.
	DefaultEnvVar = "LIGHTGRID_ADMIN_TOKEN"

	adminAccount = "admin-token"
)

// ErrNoToken is returned when no admin token is configured anywhere.
var ErrNoToken = errors.New("auth: no admin token configured")

// TokenStore resolves the admin token from the environment, then the OS
// keyring, then an optional JSON file for hosts without a keyring.
type TokenStore struct {
	service      string
	envVar       string
	fallbackPath string

	mu     sync.Mutex
	cached string
	getenv func(string) string
}

// NewTokenStore creates a token store. Empty arguments select the defaults;
// fallbackPath may stay empty to disable the file fallback.
func NewTokenStore(service, envVar, fallbackPath string) *TokenStore {
	if strings.TrimSpace(service) == "" {
		service = DefaultService
	}
	if strings.TrimSpace(envVar) == "" {
		envVar = DefaultEnvVar
	}
	return &TokenStore{
		service:      service,
		envVar:       envVar,
		fallbackPath: fallbackPath,
		getenv:       os.Getenv,
	}
}

// Token returns the admin token, caching the first successful lookup.
func (t *TokenStore) Token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached != "" {
		return t.cached, nil
	}

	if v := strings.TrimSpace(t.getenv(t.envVar)); v != "" {
		t.cached = v
		return v, nil
	}

	val, err := keyring.Get(t.service, adminAccount)
	if err == nil && val != "" {
		t.cached = val
		return val, nil
	}
	if err != nil && !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("auth: keyring get: %w", err)
	}

	fallback, ferr := t.readFallback()
	if ferr != nil {
		return "", ferr
	}
	if fallback == "" {
		return "", ErrNoToken
	}
	t.cached = fallback
	return fallback, nil
}

// Set stores the token in the keyring, or in the fallback file when no
// keyring is available.
func (t *TokenStore) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("auth: token is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cached = ""

	err := keyring.Set(t.service, adminAccount, token)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring set: %w", err)
	}
	return t.writeFallback(token)
}

// Delete removes the token from the keyring and the fallback file.
func (t *TokenStore) Delete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cached = ""

	if err := keyring.Delete(t.service, adminAccount); err != nil &&
		!errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring delete: %w", err)
	}
	if t.fallbackPath == "" {
		return nil
	}
	if err := os.Remove(t.fallbackPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("auth: remove fallback: %w", err)
	}
	return nil
}

// Verify reports whether presented matches the admin token. It is false
// whenever no token is configured.
func (t *TokenStore) Verify(presented string) bool {
	want, err := t.Token()
	if err != nil || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(presented)) == 1
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackFile struct {
	AdminToken string `json:"admin_token"`
}

func (t *TokenStore) readFallback() (string, error) {
	if t.fallbackPath == "" {
		return "", nil
	}
	raw, err := os.ReadFile(t.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("auth: read fallback: %w", err)
	}
	var f fallbackFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("auth: decode fallback: %w", err)
	}
	return f.AdminToken, nil
}

func (t *TokenStore) writeFallback(token string) error {
	if t.fallbackPath == "" {
		return fmt.Errorf("auth: keyring unavailable and no fallback path configured")
	}
	if err := os.MkdirAll(filepath.Dir(t.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("auth: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(fallbackFile{AdminToken: token})
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("auth: write fallback: %w", err)
	}
	return nil
}
