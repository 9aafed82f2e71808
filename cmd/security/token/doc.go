// Package token generates opaque session secrets and record identifiers, and
// computes the digests under which session secrets are stored.
//
// Session secrets are random bytes encoded as unpadded base64url. Stores keep
// only a 64-char hex digest: HMAC-SHA256(token, key) when
// SIDECAR_TOKEN_HMAC_KEY is set, plain SHA-256 otherwise.
package token
