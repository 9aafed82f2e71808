package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"authsidecar/cmd/identity"
)

// InMemoryStore is a dev and test fallback used when no database is configured.
// The account side of the join is resolved through an AccountReader, so a
// session whose account has disappeared reads as absent.
type InMemoryStore struct {
	accounts AccountReader

	mu     sync.Mutex
	byHash map[string]Session
}

func NewInMemoryStore(accounts AccountReader) *InMemoryStore {
	return &InMemoryStore{
		accounts: accounts,
		byHash:   make(map[string]Session),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, in CreateInput) (Session, error) {
	const op = "session.Create"

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	in.Now, in.ExpiresAt = in.Now.UTC(), in.ExpiresAt.UTC()
	if err := validateCreate(op, in); err != nil {
		return Session{}, err
	}
	if _, err := s.accounts.GetAccount(ctx, in.AccountID); err != nil {
		if identity.IsNotFound(err) {
			return Session{}, identity.NotFoundError{Op: op, Resource: "account"}
		}
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byHash[in.TokenHash]; taken {
		return Session{}, identity.ConflictError{Op: op, Field: "session_token"}
	}
	sess := Session{
		ID:        in.ID,
		AccountID: in.AccountID,
		TokenHash: in.TokenHash,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: in.Now,
	}
	s.byHash[in.TokenHash] = sess
	return sess, nil
}

func (s *InMemoryStore) FindActiveByToken(ctx context.Context, tokenHash string, now time.Time) (Session, identity.Account, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, identity.Account{}, err
	}

	s.mu.Lock()
	sess, ok := s.byHash[tokenHash]
	s.mu.Unlock()

	if !ok || !sess.ActiveAt(now) {
		return Session{}, identity.Account{}, ErrSessionNotFound
	}

	acct, err := s.accounts.GetAccount(ctx, sess.AccountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return Session{}, identity.Account{}, ErrSessionNotFound
		}
		return Session{}, identity.Account{}, err
	}
	return sess, acct, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byHash, tokenHash)
	return nil
}

func (s *InMemoryStore) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]Session, 0)
	for _, sess := range s.byHash {
		if !sess.ActiveAt(now) {
			expired = append(expired, sess)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	if len(expired) > limit {
		expired = expired[:limit]
	}
	for _, sess := range expired {
		delete(s.byHash, sess.TokenHash)
	}
	return int64(len(expired)), nil
}

// Len returns the number of stored rows, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}
