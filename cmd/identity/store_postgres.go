package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"authsidecar/cmd/security/token"
)

// PostgresStore implements Store over the users table.
//
// The pool is owned by the caller and is never closed here. Table names are
// schema-qualified and quoted.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the users table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !PGIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "public",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const accountColumns = `id, email, password_hash, name, email_verified, created_at, updated_at`

func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	acct, err := prepareAccount(op, in)
	if err != nil {
		return Account{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+PGIdent(s.schema, "users")+` (
		     id, email, password_hash, name, email_verified, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, FALSE, $5, $5)`,
		acct.ID,
		acct.Email,
		acct.CredentialHash,
		acct.DisplayName,
		acct.CreatedAt,
	)
	if err != nil {
		if field, ok := PGClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, PGWrap(op, err)
	}
	return acct, nil
}

func (s *PostgresStore) FindAccountByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.FindAccountByEmail"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+PGIdent(s.schema, "users")+` WHERE email = $1`,
		email,
	)
	return scanAccount(op, row)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccount"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+PGIdent(s.schema, "users")+` WHERE id = $1`,
		id,
	)
	return scanAccount(op, row)
}

// ScanAccountColumns lists the scan targets for accountColumns, in order.
// Joined queries in other stores reuse it to stay in step with this table.
func ScanAccountColumns(a *Account) []any {
	return []any{&a.ID, &a.Email, &a.CredentialHash, &a.DisplayName, &a.Verified, &a.CreatedAt, &a.UpdatedAt}
}

func scanAccount(op string, row pgx.Row) (Account, error) {
	var a Account
	if err := row.Scan(ScanAccountColumns(&a)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, PGWrap(op, err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

// prepareAccount validates input and fills generated fields. Shared by all
// Store implementations so they agree on what a valid account is.
func prepareAccount(op string, in CreateAccountInput) (Account, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	if strings.TrimSpace(in.CredentialHash) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "credential hash is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	id := strings.TrimSpace(in.ID)
	if id == "" {
		var err error
		if id, err = token.NewRecordID(now); err != nil {
			return Account{}, fmt.Errorf("%s: id: %w", op, err)
		}
	}

	return Account{
		ID:             id,
		Email:          email,
		CredentialHash: in.CredentialHash,
		DisplayName:    NormalizeDisplayName(in.DisplayName),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// PGIdentIsValid reports whether s is a plain Postgres identifier.
func PGIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// PGIdent quotes a schema-qualified identifier: "schema"."name".
func PGIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// PGIsUnavailable reports whether err is a retryable connectivity or deadline failure.
func PGIsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P01..57P03: admin shutdown / cannot connect now.
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	return false
}

// PGWrap classifies a raw driver error: retryable failures become
// UnavailableError, the rest are wrapped with op.
func PGWrap(op string, err error) error {
	if PGIsUnavailable(err) {
		return UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// PGClassifyUniqueViolation maps a unique_violation to a logical field name.
func PGClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}

	// Prefer the stable constraint names from the migrations.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email" || strings.Contains(c, "email"):
		return "email", true
	case c == "uq_sessions_token_hash" || strings.Contains(c, "token"):
		return "session_token", true
	case strings.HasSuffix(c, "_pkey"):
		return "id", true
	default:
		return "unique", true
	}
}
