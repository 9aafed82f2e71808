package identity

import (
	"net/mail"
	"strings"
)

// MaxEmailLength follows the RFC 5321 path limit.
const MaxEmailLength = 254

// NormalizeEmail trims surrounding whitespace. Case is preserved: two
// addresses differing only in case are distinct accounts.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeDisplayName trims s and returns nil when nothing is left.
func NormalizeDisplayName(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ValidEmail reports whether s (already normalized) is a single bare address
// such as "a@x.com". Display-name forms like "Ann <a@x.com>" are rejected.
func ValidEmail(s string) bool {
	if s == "" || len(s) > MaxEmailLength || !strings.Contains(s, "@") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}
