package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"authsidecar/cmd/identity"
	"authsidecar/cmd/security/password"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingHasher records Verify calls so tests can check both signin failure
// paths do the same work.
type countingHasher struct {
	*password.Hasher
	verifies atomic.Int64
}

func (h *countingHasher) Verify(ctx context.Context, secret, digest string) (bool, error) {
	h.verifies.Add(1)
	return h.Hasher.Verify(ctx, secret, digest)
}

func newTestHasher(t *testing.T) *countingHasher {
	t.Helper()
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	h, err := password.NewHasher(cfg)
	require.NoError(t, err)
	return &countingHasher{Hasher: h}
}

type recorded struct {
	mu     sync.Mutex
	auth   map[string]int
	reaped int64
}

func (r *recorded) ObserveAuth(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auth == nil {
		r.auth = make(map[string]int)
	}
	r.auth[op+":"+outcome]++
}

func (r *recorded) ObserveReaped(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reaped += n
}

func (r *recorded) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auth[key]
}

type testEnv struct {
	svc      *Service
	accounts *identity.InMemoryStore
	sessions *InMemoryStore
	hasher   *countingHasher
	clock    *fakeClock
	rec      *recorded
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	accounts := identity.NewInMemoryStore()
	sessions := NewInMemoryStore(accounts)
	env := &testEnv{
		accounts: accounts,
		sessions: sessions,
		hasher:   newTestHasher(t),
		clock:    newFakeClock(),
		rec:      &recorded{},
	}

	svc, err := NewService(DefaultConfig(), accounts, sessions, env.hasher,
		WithClock(env.clock.Now),
		WithLogger(discardLogger()),
		WithRecorder(env.rec),
	)
	require.NoError(t, err)
	env.svc = svc
	return env
}

// failingSessions is a Store whose every call returns err, or blocks until
// the context ends when err is nil.
type failingSessions struct {
	err error
}

func (f failingSessions) wait(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f failingSessions) Create(ctx context.Context, _ CreateInput) (Session, error) {
	return Session{}, f.wait(ctx)
}

func (f failingSessions) FindActiveByToken(ctx context.Context, _ string, _ time.Time) (Session, identity.Account, error) {
	return Session{}, identity.Account{}, f.wait(ctx)
}

func (f failingSessions) Delete(ctx context.Context, _ string) error { return f.wait(ctx) }

func (f failingSessions) DeleteExpired(ctx context.Context, _ time.Time, _ int) (int64, error) {
	return 0, f.wait(ctx)
}

// panickyAccounts fails the test if the service touches the account store.
type panickyAccounts struct{ t *testing.T }

func (p panickyAccounts) CreateAccount(context.Context, identity.CreateAccountInput) (identity.Account, error) {
	p.t.Fatalf("account store must not be called")
	return identity.Account{}, errors.New("unreachable")
}

func (p panickyAccounts) FindAccountByEmail(context.Context, string) (identity.Account, error) {
	p.t.Fatalf("account store must not be called")
	return identity.Account{}, errors.New("unreachable")
}
