package session

import (
	"os"
	"strconv"
	"time"
)

// MaxTokenLength bounds presented tokens before any hashing or store work.
const MaxTokenLength = 512

// Config controls session lifetime, secret size, store deadlines and reaping.
type Config struct {
	// Lifetime is the fixed validity of a new session, independent of activity.
	Lifetime time.Duration

	// TokenBytes is the random byte count behind each session secret.
	TokenBytes int

	// StoreTimeout bounds every individual store call.
	StoreTimeout time.Duration

	// ReapInterval is how often expired rows are swept. Zero disables the reaper.
	ReapInterval time.Duration

	// ReapBatch caps rows deleted per statement.
	ReapBatch int
}

func DefaultConfig() Config {
	return Config{
		Lifetime:     7 * 24 * time.Hour,
		TokenBytes:   32,
		StoreTimeout: 5 * time.Second,
		ReapInterval: time.Hour,
		ReapBatch:    1000,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations are Go duration strings):
//   - SIDECAR_SESSION_LIFETIME
//   - SIDECAR_SESSION_TOKEN_BYTES (32..64)
//   - SIDECAR_STORE_TIMEOUT
//   - SIDECAR_SESSION_REAP_INTERVAL (0 disables)
//   - SIDECAR_SESSION_REAP_BATCH
//
// Returns ErrConfig if any value is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SIDECAR_SESSION_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Lifetime = d
	}

	if v := os.Getenv("SIDECAR_SESSION_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	if v := os.Getenv("SIDECAR_STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.StoreTimeout = d
	}

	if v := os.Getenv("SIDECAR_SESSION_REAP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ReapInterval = d
	}

	if v := os.Getenv("SIDECAR_SESSION_REAP_BATCH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100_000 {
			return Config{}, ErrConfig
		}
		cfg.ReapBatch = n
	}

	return cfg, nil
}
