package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"authsidecar/cmd/identity"
	"authsidecar/cmd/security/token"
)

func strPtr(s string) *string { return &s }

func TestSignupThenSignin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1", DisplayName: strPtr("Ann")})
	require.NoError(t, err)
	require.NotEmpty(t, acct.ID)
	require.Equal(t, "a@x.com", acct.Email)
	require.Equal(t, "Ann", *acct.DisplayName)
	require.False(t, acct.Verified)
	require.Empty(t, acct.CredentialHash, "digest must not leave the service")

	stored, err := env.accounts.FindAccountByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Contains(t, stored.CredentialHash, "$argon2id$")
	require.NotContains(t, stored.CredentialHash, "longpassword1")

	got, err := env.svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)
	require.Equal(t, acct.ID, got.Account.ID)
	require.Empty(t, got.Account.CredentialHash)

	sess := got.Session
	require.Len(t, sess.Token, 43)
	require.Equal(t, token.HashSHA256Hex(sess.Token), sess.TokenHash)
	require.NotEqual(t, sess.ID, sess.Token)
	require.Equal(t, acct.ID, sess.AccountID)
	require.Equal(t, sess.CreatedAt.Add(7*24*time.Hour), sess.ExpiresAt)
	require.Equal(t, env.clock.Now(), sess.CreatedAt)

	resolved, err := env.svc.ResolveSession(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, sess.ID, resolved.Session.ID)
	require.Equal(t, acct.ID, resolved.Account.ID)
	require.Empty(t, resolved.Session.Token)
	require.Empty(t, resolved.Account.CredentialHash)

	require.Equal(t, 1, env.rec.count("signup:ok"))
	require.Equal(t, 1, env.rec.count("signin:ok"))
	require.Equal(t, 1, env.rec.count("resolve:ok"))
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.NoError(t, err)

	_, err = env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "anotherpassword"})
	require.ErrorIs(t, err, ErrAccountExists)
	require.Equal(t, "account_exists", Code(err))

	// The first digest is still in place.
	_, err = env.svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)
	_, err = env.svc.Signin(ctx, "a@x.com", "anotherpassword")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		exists int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Signup(ctx, SignupInput{Email: "race@x.com", Secret: "longpassword1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAccountExists):
				exists++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, n-1, exists)
}

func TestSignup_InvalidInputNeverReachesStore(t *testing.T) {
	svc, err := NewService(DefaultConfig(), panickyAccounts{t}, failingSessions{}, newTestHasher(t),
		WithLogger(discardLogger()))
	require.NoError(t, err)

	cases := []struct {
		name, email, secret, field string
	}{
		{"empty email", "", "longpassword1", "email"},
		{"blank email", "   ", "longpassword1", "email"},
		{"no at sign", "ax.com", "longpassword1", "email"},
		{"display form", "Ann <a@x.com>", "longpassword1", "email"},
		{"empty secret", "b@x.com", "", "password"},
		{"short secret", "b@x.com", "short", "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), SignupInput{Email: tc.email, Secret: tc.secret})
			require.ErrorIs(t, err, ErrInvalidInput)

			var se *Error
			require.ErrorAs(t, err, &se)
			require.Equal(t, tc.field, se.Field)
			require.NotEmpty(t, PublicMessage(err))
		})
	}
}

func TestSignin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.NoError(t, err)

	before := env.hasher.verifies.Load()
	_, errUnknown := env.svc.Signin(ctx, "nobody@x.com", "longpassword1")
	afterUnknown := env.hasher.verifies.Load()
	_, errWrong := env.svc.Signin(ctx, "a@x.com", "wrongpassword")
	afterWrong := env.hasher.verifies.Load()

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.Equal(t, errUnknown, errWrong)
	require.Equal(t, errUnknown.Error(), errWrong.Error())
	require.Equal(t, PublicMessage(errUnknown), PublicMessage(errWrong))
	require.Equal(t, Code(errUnknown), Code(errWrong))

	require.Equal(t, int64(1), afterUnknown-before, "unknown email must still verify one digest")
	require.Equal(t, int64(1), afterWrong-afterUnknown)
	require.Equal(t, 2, env.rec.count("signin:invalid_credentials"))
}

func TestSignin_LegacyDigestCostsAsMuchAsUnknownEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("timing comparison")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	sum := sha256.Sum256([]byte("longpassword1" + "old-salt"))
	_, err := env.accounts.CreateAccount(ctx, identity.CreateAccountInput{
		Email:          "legacy@x.com",
		CredentialHash: hex.EncodeToString(sum[:]),
		Now:            env.clock.Now(),
	})
	require.NoError(t, err)

	const runs = 5
	measure := func(email string) time.Duration {
		var total time.Duration
		for range runs {
			start := time.Now()
			_, err := env.svc.Signin(ctx, email, "wrongpassword")
			total += time.Since(start)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}
		return total / runs
	}

	unknown := measure("nobody@x.com")
	legacy := measure("legacy@x.com")

	// Both paths run one Argon2id derivation; a bare SHA-256 check would be
	// orders of magnitude faster.
	require.GreaterOrEqual(t, legacy, unknown/4, "unknown=%s legacy=%s", unknown, legacy)
	require.Equal(t, 2*runs, env.rec.count("signin:invalid_credentials"))
}

func TestSignin_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Signin(context.Background(), "", "longpassword1")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Signin(context.Background(), "a@x.com", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSignin_EachCreatesIndependentSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.NoError(t, err)

	first, err := env.svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)
	second, err := env.svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)

	require.NotEqual(t, first.Session.Token, second.Session.Token)
	require.NotEqual(t, first.Session.ID, second.Session.ID)

	_, err = env.svc.ResolveSession(ctx, first.Session.Token)
	require.NoError(t, err, "earlier sessions stay valid")
	_, err = env.svc.ResolveSession(ctx, second.Session.Token)
	require.NoError(t, err)
}

func TestResolveSession_ExpiredIsAbsentWhileRowRemains(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.NoError(t, err)
	out, err := env.svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)

	env.clock.Advance(7*24*time.Hour - time.Second)
	_, err = env.svc.ResolveSession(ctx, out.Session.Token)
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	_, err = env.svc.ResolveSession(ctx, out.Session.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Equal(t, 1, env.sessions.Len(), "expired row is still stored")
}

func TestResolveSession_UnknownOrMalformed(t *testing.T) {
	env := newTestEnv(t)

	for _, tok := range []string{"", "not-a-real-token", string(make([]byte, MaxTokenLength+1))} {
		_, err := env.svc.ResolveSession(context.Background(), tok)
		require.ErrorIs(t, err, ErrUnauthenticated)
		require.Same(t, ErrUnauthenticated, err)
	}
}

func TestResolveSession_DeletedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.NoError(t, err)
	out, err := env.svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)

	require.NoError(t, env.accounts.DeleteAccount(ctx, acct.ID))

	_, err = env.svc.ResolveSession(ctx, out.Session.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSignout_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.NoError(t, err)
	out, err := env.svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)

	require.NoError(t, env.svc.Signout(ctx, out.Session.Token))
	require.NoError(t, env.svc.Signout(ctx, out.Session.Token))
	require.NoError(t, env.svc.Signout(ctx, ""))
	require.NoError(t, env.svc.Signout(ctx, "never-issued"))

	_, err = env.svc.ResolveSession(ctx, out.Session.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestStoreTimeoutIsUnavailableNotAbsent(t *testing.T) {
	accounts := identity.NewInMemoryStore()
	cfg := DefaultConfig()
	cfg.StoreTimeout = 20 * time.Millisecond

	svc, err := NewService(cfg, accounts, failingSessions{}, newTestHasher(t), WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = svc.ResolveSession(context.Background(), "some-token")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "store_unavailable", Code(err))

	err = svc.Signout(context.Background(), "some-token")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestUnexpectedStoreErrorIsInternal(t *testing.T) {
	accounts := identity.NewInMemoryStore()
	svc, err := NewService(DefaultConfig(), accounts, failingSessions{err: errors.New("disk on fire")},
		newTestHasher(t), WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = svc.ResolveSession(context.Background(), "some-token")
	require.ErrorIs(t, err, ErrInternal)
	require.Equal(t, "internal error", PublicMessage(err))
	require.NotContains(t, PublicMessage(err), "disk")
}

func TestUnavailableAccountStore(t *testing.T) {
	accounts := unavailableAccounts{}
	svc, err := NewService(DefaultConfig(), accounts, failingSessions{}, newTestHasher(t), WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = svc.Signin(context.Background(), "a@x.com", "longpassword1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Signup(context.Background(), SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

type unavailableAccounts struct{}

func (unavailableAccounts) CreateAccount(context.Context, identity.CreateAccountInput) (identity.Account, error) {
	return identity.Account{}, identity.UnavailableError{Op: "test", Err: errors.New("connection refused")}
}

func (unavailableAccounts) FindAccountByEmail(context.Context, string) (identity.Account, error) {
	return identity.Account{}, identity.UnavailableError{Op: "test", Err: errors.New("connection refused")}
}

func TestKeyedDigesterChangesStoredHash(t *testing.T) {
	accounts := identity.NewInMemoryStore()
	sessions := NewInMemoryStore(accounts)
	key := []byte("0123456789abcdef0123456789abcdef")

	svc, err := NewService(DefaultConfig(), accounts, sessions, newTestHasher(t),
		WithLogger(discardLogger()), WithTokenDigester(token.NewDigester(key)))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Signup(ctx, SignupInput{Email: "a@x.com", Secret: "longpassword1"})
	require.NoError(t, err)
	out, err := svc.Signin(ctx, "a@x.com", "longpassword1")
	require.NoError(t, err)

	require.Equal(t, token.HashHMACSHA256Hex(out.Session.Token, key), out.Session.TokenHash)
	_, err = svc.ResolveSession(ctx, out.Session.Token)
	require.NoError(t, err)
}
