package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authsidecar/cmd/identity"
	"authsidecar/cmd/security/password"
	"authsidecar/cmd/security/token"
)

// AccountStore is the subset of identity.Store the service needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, in identity.CreateAccountInput) (identity.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (identity.Account, error)
}

// CredentialHasher derives and checks credential digests.
type CredentialHasher interface {
	Validate(secret string) error
	Hash(ctx context.Context, secret string) (string, error)
	Verify(ctx context.Context, secret, digest string) (bool, error)
}

// Recorder observes operation outcomes. Outcome is "ok" or an error Code.
type Recorder interface {
	ObserveAuth(op, outcome string)
	ObserveReaped(n int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAuth(string, string) {}
func (nopRecorder) ObserveReaped(int64)        {}

// Service implements signup, signin, session resolution and signout.
type Service struct {
	cfg      Config
	accounts AccountStore
	sessions Store
	hasher   CredentialHasher
	digester token.Digester

	now func() time.Time
	log *slog.Logger
	rec Recorder

	// dummyHash is verified when signin names an unknown email so both
	// failure paths pay for one key derivation.
	dummyHash string
}

// SignupInput carries a registration request.
type SignupInput struct {
	Email       string
	Secret      string
	DisplayName *string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.rec = rec
		}
	}
}

// WithTokenDigester sets how session secrets are digested before storage.
func WithTokenDigester(d token.Digester) Option {
	return func(s *Service) { s.digester = d }
}

func NewService(cfg Config, accounts AccountStore, sessions Store, hasher CredentialHasher, opts ...Option) (*Service, error) {
	if accounts == nil || sessions == nil || hasher == nil {
		return nil, fmt.Errorf("session: nil dependency")
	}
	if cfg.Lifetime <= 0 || cfg.TokenBytes <= 0 {
		return nil, ErrConfig
	}

	s := &Service{
		cfg:      cfg,
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		now:      time.Now,
		log:      slog.Default(),
		rec:      nopRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	dummy, err := token.NewOpaqueToken(48)
	if err != nil {
		return nil, fmt.Errorf("session: dummy secret: %w", err)
	}
	if s.dummyHash, err = hasher.Hash(context.Background(), dummy); err != nil {
		return nil, fmt.Errorf("session: dummy hash: %w", err)
	}
	return s, nil
}

// Signup registers a new account. Validation happens before any store call.
func (s *Service) Signup(ctx context.Context, in SignupInput) (acct identity.Account, err error) {
	const op = "session.Signup"
	defer func() { s.rec.ObserveAuth("signup", Code(err)) }()

	email := identity.NormalizeEmail(in.Email)
	switch {
	case email == "":
		return identity.Account{}, invalidInput(op, "email", "email is required")
	case !identity.ValidEmail(email):
		return identity.Account{}, invalidInput(op, "email", "email is invalid")
	case in.Secret == "":
		return identity.Account{}, invalidInput(op, "password", "password is required")
	}
	if err := s.hasher.Validate(in.Secret); err != nil {
		return identity.Account{}, invalidInput(op, "password", policyMessage(err))
	}

	if _, err := storeCall(ctx, s, func(ctx context.Context) (identity.Account, error) {
		return s.accounts.FindAccountByEmail(ctx, email)
	}); err == nil {
		return identity.Account{}, &Error{Op: op, Kind: ErrAccountExists}
	} else if !identity.IsNotFound(err) {
		return identity.Account{}, s.fail(op, err)
	}

	digest, err := s.hasher.Hash(ctx, in.Secret)
	if err != nil {
		return identity.Account{}, s.fail(op, err)
	}

	now := s.now().UTC()
	id, err := token.NewRecordID(now)
	if err != nil {
		return identity.Account{}, s.fail(op, err)
	}

	acct, err = storeCall(ctx, s, func(ctx context.Context) (identity.Account, error) {
		return s.accounts.CreateAccount(ctx, identity.CreateAccountInput{
			ID:             id,
			Email:          email,
			CredentialHash: digest,
			DisplayName:    identity.NormalizeDisplayName(in.DisplayName),
			Now:            now,
		})
	})
	if err != nil {
		// Lost a race with a concurrent signup for the same email.
		if field, ok := identity.ConflictField(err); ok && field == "email" {
			return identity.Account{}, &Error{Op: op, Kind: ErrAccountExists}
		}
		return identity.Account{}, s.fail(op, err)
	}

	s.log.Info("auth.signup.ok", "account_id", acct.ID)
	return redact(acct), nil
}

// Signin authenticates email and secret and opens a new session. Unknown
// email and wrong secret both yield ErrInvalidCredentials, and both verify
// one digest before returning.
func (s *Service) Signin(ctx context.Context, email, secret string) (out Authenticated, err error) {
	const op = "session.Signin"
	defer func() { s.rec.ObserveAuth("signin", Code(err)) }()

	email = identity.NormalizeEmail(email)
	if email == "" || secret == "" {
		return Authenticated{}, invalidInput(op, "", "email and password are required")
	}

	acct, err := storeCall(ctx, s, func(ctx context.Context) (identity.Account, error) {
		return s.accounts.FindAccountByEmail(ctx, email)
	})
	digest := acct.CredentialHash
	switch {
	case err == nil:
	case identity.IsNotFound(err):
		digest = s.dummyHash
	default:
		return Authenticated{}, s.fail(op, err)
	}

	ok, verr := s.hasher.Verify(ctx, secret, digest)
	if verr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || isContextErr(verr) {
			return Authenticated{}, s.fail(op, verr)
		}
		if err == nil {
			s.log.Error("auth.signin.stored_digest.invalid", "account_id", acct.ID, "err", verr)
		}
		ok = false
	}
	if err != nil || !ok {
		return Authenticated{}, ErrInvalidCredentials
	}

	sess, err := s.openSession(ctx, op, acct.ID)
	if err != nil {
		return Authenticated{}, err
	}

	s.log.Info("auth.signin.ok", "account_id", acct.ID, "session_id", sess.ID)
	return Authenticated{Account: redact(acct), Session: sess}, nil
}

func (s *Service) openSession(ctx context.Context, op, accountID string) (Session, error) {
	secret, err := token.NewOpaqueToken(s.cfg.TokenBytes)
	if err != nil {
		return Session{}, s.fail(op, err)
	}
	now := s.now().UTC()
	id, err := token.NewRecordID(now)
	if err != nil {
		return Session{}, s.fail(op, err)
	}

	sess, err := storeCall(ctx, s, func(ctx context.Context) (Session, error) {
		return s.sessions.Create(ctx, CreateInput{
			ID:        id,
			AccountID: accountID,
			TokenHash: s.digester.Hex(secret),
			ExpiresAt: now.Add(s.cfg.Lifetime),
			Now:       now,
		})
	})
	if err != nil {
		return Session{}, s.fail(op, err)
	}
	sess.Token = secret
	return sess, nil
}

// ResolveSession returns the session and account behind a presented token.
// Missing, unknown and expired tokens all yield ErrUnauthenticated.
func (s *Service) ResolveSession(ctx context.Context, presented string) (out Authenticated, err error) {
	const op = "session.ResolveSession"
	defer func() { s.rec.ObserveAuth("resolve", Code(err)) }()

	if presented == "" || len(presented) > MaxTokenLength {
		return Authenticated{}, ErrUnauthenticated
	}

	now := s.now().UTC()
	var acct identity.Account
	sess, err := storeCall(ctx, s, func(ctx context.Context) (Session, error) {
		var (
			sess Session
			err  error
		)
		sess, acct, err = s.sessions.FindActiveByToken(ctx, s.digester.Hex(presented), now)
		return sess, err
	})
	if errors.Is(err, ErrSessionNotFound) {
		return Authenticated{}, ErrUnauthenticated
	}
	if err != nil {
		return Authenticated{}, s.fail(op, err)
	}
	return Authenticated{Account: redact(acct), Session: sess}, nil
}

// Signout deletes the session behind a presented token if there is one.
// Unknown or empty tokens succeed; only a store failure is reported.
func (s *Service) Signout(ctx context.Context, presented string) (err error) {
	const op = "session.Signout"
	defer func() { s.rec.ObserveAuth("signout", Code(err)) }()

	if presented == "" || len(presented) > MaxTokenLength {
		return nil
	}

	_, err = storeCall(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.sessions.Delete(ctx, s.digester.Hex(presented))
	})
	if err != nil {
		return s.fail(op, err)
	}
	return nil
}

// redact drops the credential digest from accounts leaving the service.
func redact(a identity.Account) identity.Account {
	a.CredentialHash = ""
	return a
}

// storeCall runs fn under the per-call store deadline.
func storeCall[T any](ctx context.Context, s *Service, fn func(context.Context) (T, error)) (T, error) {
	if s.cfg.StoreTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

// fail classifies an unexpected error, logs it and wraps it with a kind.
func (s *Service) fail(op string, err error) error {
	if identity.IsUnavailable(err) || isContextErr(err) {
		s.log.Warn(op+".unavailable", "err", err)
		return &Error{Op: op, Kind: ErrStoreUnavailable, Err: err}
	}
	s.log.Error(op+".fail", "err", err)
	return &Error{Op: op, Kind: ErrInternal, Err: err}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func policyMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "password is too short"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "password is too long"
	case errors.Is(err, password.ErrWeakPassword):
		return "password is too weak"
	default:
		return "password is not acceptable"
	}
}
