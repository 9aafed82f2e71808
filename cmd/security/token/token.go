package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// HMACEnvKey names the env var holding the token HMAC secret.
	// #nosec G101 -- an environment variable name, not a credential.
	HMACEnvKey = "SIDECAR_TOKEN_HMAC_KEY"

	// DefaultTokenBytes yields 256 bits of entropy.
	DefaultTokenBytes = 32

	// MinHMACKeyBytes is the shortest accepted HMAC key.
	MinHMACKeyBytes = 32
)

// NewOpaqueToken returns nBytes of crypto/rand output as unpadded base64url.
// Non-positive nBytes means DefaultTokenBytes.
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewRecordID returns a 26-char ULID stamped with now.
func NewRecordID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the trimmed HMAC key, enforcing a minimum byte length.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	if minBytes > 0 && len(raw) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return []byte(raw), nil
}

// Digester maps session secrets to their stored form. The zero value uses SHA-256.
type Digester struct {
	key []byte
}

// NewDigester returns a Digester that uses HMAC-SHA256 when key is non-empty.
func NewDigester(key []byte) Digester {
	return Digester{key: key}
}

// DigesterFromEnv builds a Digester from SIDECAR_TOKEN_HMAC_KEY. With require
// set, a missing or short key is an error; otherwise a missing key falls back
// to SHA-256 and a present key must still meet MinHMACKeyBytes.
func DigesterFromEnv(require bool) (Digester, error) {
	key, err := HMACKeyFromEnv(MinHMACKeyBytes)
	switch {
	case err == nil:
		return NewDigester(key), nil
	case err == ErrHMACKeyMissing && !require:
		return Digester{}, nil
	default:
		return Digester{}, err
	}
}

// Keyed reports whether the digester uses HMAC.
func (d Digester) Keyed() bool { return len(d.key) > 0 }

// Hex returns the 64-char hex digest of tok.
func (d Digester) Hex(tok string) string {
	if len(d.key) == 0 {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, d.key)
}
