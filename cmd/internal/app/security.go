package app

import (
	"errors"

	"authsidecar/cmd/security/token"
)

// ValidateSecurityConfig enforces the token-digest policy at startup and
// returns the digester the session service must use.
//
// Fail fast: a deployment that asked for keyed digests must never run on the
// plain SHA-256 fallback.
func ValidateSecurityConfig(cfg Config) (token.Digester, error) {
	d, err := token.DigesterFromEnv(cfg.RequireTokenHMAC)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return token.Digester{}, errors.New("security policy: SIDECAR_REQUIRE_TOKEN_HMAC=true but SIDECAR_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return token.Digester{}, errors.New("security policy: SIDECAR_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return token.Digester{}, err
		}
	}

	if cfg.RequireTokenHMAC && !d.Keyed() {
		return token.Digester{}, errors.New("security policy: SIDECAR_REQUIRE_TOKEN_HMAC=true but token digests are not keyed")
	}
	return d, nil
}
