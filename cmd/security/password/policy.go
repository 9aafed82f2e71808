package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks a candidate secret against the policy. Lengths count runes.
func (c Config) Validate(secret string) error {
	n := utf8.RuneCountInString(secret)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && looksVeryWeak(secret) {
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak is a tiny blocklist, not a strength estimator.
func looksVeryWeak(secret string) bool {
	s := strings.TrimSpace(secret)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	if strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 &&
		utf8.RuneCountInString(s) < 12 {
		return true
	}

	switch strings.ToLower(s) {
	case "password", "password1", "password123", "12345678", "123456789", "qwerty123", "qwertyuiop", "letmein1":
		return true
	}
	return false
}
