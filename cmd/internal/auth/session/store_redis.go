package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authsidecar/cmd/identity"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "sidecar:sess"

// RedisStore keeps sessions in Redis with a key TTL equal to the session's
// remaining lifetime. Accounts stay in the account store and are resolved on
// every read, so a deleted account invalidates its sessions.
//
// Expired keys are evicted by Redis itself; DeleteExpired is a no-op.
type RedisStore struct {
	rdb      redis.UniversalClient
	accounts AccountReader
	prefix   string
}

type redisRecord struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRedisStore(rdb redis.UniversalClient, accounts AccountReader, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, accounts: accounts, prefix: prefix}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

func (s *RedisStore) Create(ctx context.Context, in CreateInput) (Session, error) {
	const op = "session.Create"

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	in.Now, in.ExpiresAt = in.Now.UTC(), in.ExpiresAt.UTC()
	if err := validateCreate(op, in); err != nil {
		return Session{}, err
	}

	data, err := json.Marshal(redisRecord{
		ID:        in.ID,
		AccountID: in.AccountID,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: in.Now,
	})
	if err != nil {
		return Session{}, err
	}

	ok, err := s.rdb.SetNX(ctx, s.key(in.TokenHash), data, in.ExpiresAt.Sub(in.Now)).Result()
	if err != nil {
		return Session{}, redisWrap(op, err)
	}
	if !ok {
		return Session{}, identity.ConflictError{Op: op, Field: "session_token"}
	}

	return Session{
		ID:        in.ID,
		AccountID: in.AccountID,
		TokenHash: in.TokenHash,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: in.Now,
	}, nil
}

func (s *RedisStore) FindActiveByToken(ctx context.Context, tokenHash string, now time.Time) (Session, identity.Account, error) {
	const op = "session.FindActiveByToken"

	if err := ctx.Err(); err != nil {
		return Session{}, identity.Account{}, err
	}
	if tokenHash == "" {
		return Session{}, identity.Account{}, ErrSessionNotFound
	}

	data, err := s.rdb.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, identity.Account{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, identity.Account{}, redisWrap(op, err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Session{}, identity.Account{}, fmt.Errorf("%s: corrupt session record: %w", op, err)
	}

	sess := Session{
		ID:        rec.ID,
		AccountID: rec.AccountID,
		TokenHash: tokenHash,
		ExpiresAt: rec.ExpiresAt.UTC(),
		CreatedAt: rec.CreatedAt.UTC(),
	}
	// Key TTLs have second granularity on some servers; the record decides.
	if !sess.ActiveAt(now) {
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

func (s *RedisStore) Delete(ctx context.Context, tokenHash string) error {
	const op = "session.Delete"

	if err := ctx.Err(); err != nil {
		return err
	}
	if tokenHash == "" {
		return nil
	}
	if err := s.rdb.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return redisWrap(op, err)
	}
	return nil
}

func (s *RedisStore) DeleteExpired(ctx context.Context, _ time.Time, _ int) (int64, error) {
	return 0, ctx.Err()
}

// Ping checks connectivity for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// redisWrap reports every non-Nil client error as unavailable: reply errors
// from a healthy server do not occur for the commands used here.
func redisWrap(op string, err error) error {
	return identity.UnavailableError{Op: op, Err: err}
}
