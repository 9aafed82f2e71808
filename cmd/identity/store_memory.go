package identity

import (
	"context"
	"sync"
)

// InMemoryStore is a dev and test fallback used when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string // email -> id
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (s *InMemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	acct, err := prepareAccount(op, in)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[acct.Email]; taken {
		return Account{}, ConflictError{Op: op, Field: "email"}
	}
	if _, taken := s.byID[acct.ID]; taken {
		return Account{}, ConflictError{Op: op, Field: "id"}
	}
	s.byID[acct.ID] = acct
	s.byEmail[acct.Email] = acct.ID
	return acct, nil
}

func (s *InMemoryStore) FindAccountByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.FindAccountByEmail"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return s.byID[id], nil
}

func (s *InMemoryStore) GetAccount(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return a, nil
}

// DeleteAccount removes an account. The service never calls it; it exists so
// tests can exercise what session reads do once the owner is gone.
func (s *InMemoryStore) DeleteAccount(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.byID[id]; ok {
		delete(s.byEmail, a.Email)
		delete(s.byID, id)
	}
	return nil
}
