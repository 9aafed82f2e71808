package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const legacyDigestLen = sha256.Size * 2

// isLegacyDigest reports whether encoded looks like a hex SHA-256 digest.
func isLegacyDigest(encoded string) bool {
	if len(encoded) != legacyDigestLen {
		return false
	}
	_, err := hex.DecodeString(encoded)
	return err == nil
}

// verifyLegacy checks sha256(secret + salt) against a stored hex digest.
func (c Config) verifyLegacy(secret, encoded string) (bool, error) {
	if c.LegacySalt == "" {
		return false, ErrInvalidHash
	}
	sum := sha256.Sum256([]byte(secret + c.LegacySalt))
	got := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(encoded))) == 1, nil
}
