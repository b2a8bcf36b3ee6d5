// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ServerURL    string
	LoginScheme  string
	UserAgent    string
	ListenAddr   string
	DBPath       string
	PollInterval time.Duration
	SecretKey    []byte // 32-byte AES-256 key; nil when unset.
}

// LoginURLPrefix returns the redirect prefix the server must use,
// e.g. "parlor://login/".
func (c *Config) LoginURLPrefix() string {
	return c.LoginScheme + "://login/"
}

// Load reads configuration from environment variables and returns a validated
// Config. LOGINFLOW_SERVER_URL is required. LOGINFLOW_SECRET_KEY is optional
// but account storage is disabled without it; when set it must be 64 hex
// characters (a 32-byte AES-256 key). Optional variables with defaults:
// LOGINFLOW_LOGIN_SCHEME (parlor), LOGINFLOW_LISTEN_ADDR (127.0.0.1:8080),
// LOGINFLOW_DB_PATH (loginflow.db), LOGINFLOW_POLL_INTERVAL (5m).
func Load() (*Config, error) {
	serverURL := strings.TrimSuffix(os.Getenv("LOGINFLOW_SERVER_URL"), "/")
	if serverURL == "" {
		return nil, fmt.Errorf("LOGINFLOW_SERVER_URL is required")
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("LOGINFLOW_SERVER_URL must start with http:// or https://, got %q", serverURL)
	}

	scheme := "parlor"
	if v, ok := os.LookupEnv("LOGINFLOW_LOGIN_SCHEME"); ok && v != "" {
		scheme = v
	}

	userAgent := "Mozilla/5.0 (Linux) Parlor/1.0"
	if v, ok := os.LookupEnv("LOGINFLOW_USER_AGENT"); ok && v != "" {
		userAgent = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("LOGINFLOW_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "loginflow.db"
	if v, ok := os.LookupEnv("LOGINFLOW_DB_PATH"); ok {
		dbPath = v
	}

	pollInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("LOGINFLOW_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("LOGINFLOW_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		pollInterval = parsed
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("LOGINFLOW_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("LOGINFLOW_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("LOGINFLOW_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		ServerURL:    serverURL,
		LoginScheme:  scheme,
		UserAgent:    userAgent,
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
		PollInterval: pollInterval,
		SecretKey:    secretKey,
	}, nil
}
