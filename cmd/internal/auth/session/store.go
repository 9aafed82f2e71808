package session

import (
	"context"
	"time"

	"authsidecar/cmd/identity"
)

// Session is one login of one account.
type Session struct {
	ID        string
	AccountID string

	// Token is the plain secret. It is set only on the value returned by
	// Service.Signin and is never persisted.
	Token string

	// TokenHash is the stored digest of Token.
	TokenHash string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// ActiveAt reports whether the session is valid at now.
func (s Session) ActiveAt(now time.Time) bool { return now.Before(s.ExpiresAt) }

// Remaining returns the time left before expiry at now, never negative.
func (s Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Authenticated pairs a session with its owning account.
type Authenticated struct {
	Account identity.Account
	Session Session
}

// CreateInput describes a session row to insert.
type CreateInput struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	Now       time.Time
}

// Store is the session persistence boundary.
//
// FindActiveByToken joins the owning account and must report
// ErrSessionNotFound for unknown digests and for rows whose expires_at is not
// after now. Delete is idempotent. DeleteExpired removes at most limit expired
// rows and reports how many went.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Session, error)
	FindActiveByToken(ctx context.Context, tokenHash string, now time.Time) (Session, identity.Account, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// AccountReader resolves an account by id for stores that cannot join.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (identity.Account, error)
}

func validateCreate(op string, in CreateInput) error {
	switch {
	case in.ID == "":
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "missing id"}
	case in.AccountID == "":
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "missing account id"}
	case len(in.TokenHash) != 64:
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "token hash must be 64 hex chars"}
	case !in.ExpiresAt.After(in.Now):
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "expiry must follow creation"}
	}
	return nil
}
