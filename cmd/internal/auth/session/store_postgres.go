package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"authsidecar/cmd/identity"
)

// PostgresStore implements Store over the sessions table, joined to users.
// The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema holding the sessions and users tables (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !identity.PGIdentIsValid(schema) {
			return fmt.Errorf("session: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "public"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) sessions() string { return identity.PGIdent(s.schema, "sessions") }
func (s *PostgresStore) users() string    { return identity.PGIdent(s.schema, "users") }

func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Session, error) {
	const op = "session.Create"

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	in.Now, in.ExpiresAt = in.Now.UTC(), in.ExpiresAt.UTC()
	if err := validateCreate(op, in); err != nil {
		return Session{}, err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.sessions()+` (id, user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		in.ID, in.AccountID, in.TokenHash, in.ExpiresAt, in.Now,
	)
	if err != nil {
		if field, ok := identity.PGClassifyUniqueViolation(err); ok {
			return Session{}, identity.ConflictError{Op: op, Field: field}
		}
		if pgIsForeignKeyViolation(err) {
			return Session{}, identity.NotFoundError{Op: op, Resource: "account"}
		}
		return Session{}, identity.PGWrap(op, err)
	}

	return Session{
		ID:        in.ID,
		AccountID: in.AccountID,
		TokenHash: in.TokenHash,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: in.Now,
	}, nil
}

func (s *PostgresStore) FindActiveByToken(ctx context.Context, tokenHash string, now time.Time) (Session, identity.Account, error) {
	const op = "session.FindActiveByToken"

	if err := ctx.Err(); err != nil {
		return Session{}, identity.Account{}, err
	}
	if tokenHash == "" {
		return Session{}, identity.Account{}, ErrSessionNotFound
	}

	var (
		sess Session
		acct identity.Account
	)
	dest := append([]any{&sess.ID, &sess.AccountID, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt},
		identity.ScanAccountColumns(&acct)...)

	err := s.pool.QueryRow(ctx, `
		SELECT
			s.id, s.user_id, s.token_hash, s.expires_at, s.created_at,
			u.id, u.email, u.password_hash, u.name, u.email_verified, u.created_at, u.updated_at
		FROM `+s.sessions()+` s
		JOIN `+s.users()+` u ON u.id = s.user_id
		WHERE s.token_hash = $1
		  AND s.expires_at > $2
	`, tokenHash, now.UTC()).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, identity.Account{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, identity.Account{}, identity.PGWrap(op, err)
	}

	sess.ExpiresAt, sess.CreatedAt = sess.ExpiresAt.UTC(), sess.CreatedAt.UTC()
	acct.CreatedAt, acct.UpdatedAt = acct.CreatedAt.UTC(), acct.UpdatedAt.UTC()
	return sess, acct, nil
}

func (s *PostgresStore) Delete(ctx context.Context, tokenHash string) error {
	const op = "session.Delete"

	if err := ctx.Err(); err != nil {
		return err
	}
	if tokenHash == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.sessions()+` WHERE token_hash = $1`, tokenHash); err != nil {
		return identity.PGWrap(op, err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	const op = "session.DeleteExpired"

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.sessions()+`
		WHERE id IN (
			SELECT id FROM `+s.sessions()+`
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`, now.UTC(), limit)
	if err != nil {
		return 0, identity.PGWrap(op, err)
	}
	return tag.RowsAffected(), nil
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
