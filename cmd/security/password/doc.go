// Package password derives and verifies stored credential digests.
//
// New digests are Argon2id in the PHC string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
//
// Each digest carries its own random salt. Digests written by the previous
// sidecar (hex SHA-256 of secret+site salt) can still be verified when the old
// site salt is configured, but they are never produced.
//
// Digest strings are treated as untrusted input during verification and
// parameters far above the configured cost are rejected.
package password
