package app

import (
	"fmt"
	"strings"
	"time"

	"authsidecar/cmd/identity"
)

// Session store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	ServiceName string
	Version     string

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32
	DBMigrate   bool

	// SessionStore selects where sessions live. Accounts always live in
	// Postgres when DatabaseURL is set and in memory otherwise.
	SessionStore string
	RedisURL     string

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool

	// If true, SIDECAR_TOKEN_HMAC_KEY must be set and session secrets are
	// stored as HMAC digests.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	cfg := Config{
		ServiceName: EnvString("SIDECAR_SERVICE_NAME", "auth-sidecar"),
		Version:     EnvString("SIDECAR_VERSION", "1.0.0"),

		HTTPAddr:  httpAddrFromEnv(),
		LogLevel:  EnvString("SIDECAR_LOG_LEVEL", "info"),
		LogFormat: EnvString("SIDECAR_LOG_FORMAT", LogFormatJSON),

		ReadHeaderTimeout: EnvDuration("SIDECAR_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SIDECAR_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SIDECAR_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SIDECAR_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("SIDECAR_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("SIDECAR_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvFirst("", "SIDECAR_DATABASE_URL", "DATABASE_URL"),
		DBSchema:    EnvString("SIDECAR_DB_SCHEMA", "public"),
		DBMaxConns:  EnvInt32("SIDECAR_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SIDECAR_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("SIDECAR_DB_MIGRATE", false),

		SessionStore: strings.ToLower(EnvString("SIDECAR_SESSION_STORE", "")),
		RedisURL:     EnvString("SIDECAR_REDIS_URL", ""),

		CORSAllowedOrigins:   EnvList(EnvFirst("http://localhost:3000", "SIDECAR_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")),
		CORSAllowCredentials: EnvBool("SIDECAR_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("SIDECAR_CORS_MAX_AGE", 600),

		ReadinessRequireDB: EnvBool("SIDECAR_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("SIDECAR_REQUIRE_TOKEN_HMAC", false),
	}

	if cfg.SessionStore == "" {
		cfg.SessionStore = StoreMemory
		if cfg.DatabaseURL != "" {
			cfg.SessionStore = StorePostgres
		}
	}
	return cfg
}

// httpAddrFromEnv honors the PORT convention of container platforms.
func httpAddrFromEnv() string {
	if v := EnvString("SIDECAR_HTTP_ADDR", ""); v != "" {
		return v
	}
	if port := EnvString("PORT", ""); port != "" {
		return ":" + port
	}
	return ":3001"
}

// Validate rejects combinations that cannot start.
func (c Config) Validate() error {
	switch c.SessionStore {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: SIDECAR_SESSION_STORE=postgres requires SIDECAR_DATABASE_URL")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: SIDECAR_SESSION_STORE=redis requires SIDECAR_REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown SIDECAR_SESSION_STORE %q", c.SessionStore)
	}

	if !identity.PGIdentIsValid(c.DBSchema) {
		return fmt.Errorf("config: invalid SIDECAR_DB_SCHEMA %q", c.DBSchema)
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("config: SIDECAR_DB_MIN_CONNS exceeds SIDECAR_DB_MAX_CONNS")
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatText, LogFormatAuto:
	default:
		return fmt.Errorf("config: unknown SIDECAR_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
