package identity

import (
	"context"
	"time"
)

// Account is a registered identity.
type Account struct {
	ID             string
	Email          string
	CredentialHash string
	DisplayName    *string

	// Verified is carried for schema compatibility; nothing in this service sets it.
	Verified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateAccountInput describes a new account. Email and CredentialHash are
// required; ID is generated when empty.
type CreateAccountInput struct {
	ID             string
	Email          string
	CredentialHash string
	DisplayName    *string
	Now            time.Time
}

// Store is the account persistence boundary.
//
// CreateAccount fails with a ConflictError{Field: "email"} when the email is
// taken; concurrent creates for one email resolve to exactly one success.
// Lookups return a NotFoundError when no row matches. Retryable backend
// failures are reported as UnavailableError.
type Store interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	FindAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccount(ctx context.Context, id string) (Account, error)
}
