package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// DefaultCookieName is the cookie existing site clients already send.
const DefaultCookieName = "better-auth.session_token"

// Config controls the HTTP surface of the auth endpoints.
type Config struct {
	// BasePath prefixes the auth routes, e.g. "/auth". Empty mounts them at the root.
	BasePath     string
	MaxBodyBytes int64

	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   64 << 10,
		CookieName:     DefaultCookieName,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		BasePath:       normalizeBasePath(os.Getenv("SIDECAR_AUTH_BASE_PATH")),
		MaxBodyBytes:   envInt64("SIDECAR_MAX_BODY_BYTES", def.MaxBodyBytes),
		CookieName:     envString("SIDECAR_COOKIE_NAME", def.CookieName),
		CookiePath:     def.CookiePath,
		CookieDomain:   strings.TrimSpace(os.Getenv("SIDECAR_COOKIE_DOMAIN")),
		CookieSecure:   envBool("SIDECAR_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite: parseSameSite(os.Getenv("SIDECAR_COOKIE_SAMESITE")),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
