package session

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by Service. Each maps to exactly one external status.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAccountExists = errors.New("account exists")

	// ErrInvalidCredentials covers both an unknown email and a wrong secret.
	// Signin returns this exact value for either case and nothing else.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated covers missing, unknown and expired tokens alike.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStoreUnavailable marks a retryable backend failure such as a timeout.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrInternal = errors.New("internal error")
)

var (
	// ErrSessionNotFound is returned by Store reads when no active session matches.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Error carries a kind plus context. Msg is safe to show to clients for
// ErrInvalidInput; Err is the underlying cause and is only ever logged.
type Error struct {
	Op    string
	Kind  error
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var kinds = []struct {
	kind error
	code string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrAccountExists, "account_exists"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrUnauthenticated, "unauthenticated"},
	{ErrStoreUnavailable, "store_unavailable"},
	{ErrInternal, "internal_error"},
}

// KindOf returns the kind sentinel carried by err. Errors that carry none
// are ErrInternal.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.kind
		}
	}
	return ErrInternal
}

// Code returns the stable snake_case code for err's kind, or "ok" for nil.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	kind := KindOf(err)
	for _, k := range kinds {
		if k.kind == kind {
			return k.code
		}
	}
	return "internal_error"
}

// PublicMessage returns text that is safe to send to a client for err.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case ErrInvalidInput:
		var e *Error
		if errors.As(err, &e) && e.Msg != "" {
			return e.Msg
		}
		return "invalid input"
	case ErrAccountExists:
		return "an account with this email already exists"
	case ErrInvalidCredentials:
		return "invalid email or password"
	case ErrUnauthenticated:
		return "not authenticated"
	case ErrStoreUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

func invalidInput(op, field, msg string) error {
	return &Error{Op: op, Kind: ErrInvalidInput, Field: field, Msg: msg}
}
