package password

import (
	"context"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Hasher produces and checks credential digests. Key derivation is memory-hard,
// so concurrent derivations are bounded; callers waiting for a slot give up
// when their context ends.
type Hasher struct {
	cfg Config
	sem *semaphore.Weighted
}

func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Hasher{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}, nil
}

// Config returns the hasher's configuration.
func (h *Hasher) Config() Config { return h.cfg }

// Validate checks secret against the configured policy without hashing it.
func (h *Hasher) Validate(secret string) error {
	return h.cfg.Validate(secret)
}

// Hash returns a new Argon2id digest for secret.
func (h *Hasher) Hash(ctx context.Context, secret string) (string, error) {
	if err := h.cfg.Validate(secret); err != nil {
		return "", err
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	return h.cfg.derive(secret)
}

// Verify reports whether secret matches digest. Malformed digests yield
// (false, ErrInvalidHash); a context that ends while queued yields its error.
// Every digest form costs one Argon2id derivation, so the latency of a check
// does not reveal whether the stored digest is current, legacy or corrupt.
func (h *Hasher) Verify(ctx context.Context, secret, digest string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	if strings.HasPrefix(digest, argon2Prefix) {
		return h.cfg.verifyArgon2id(secret, digest)
	}

	h.cfg.burn(secret)
	if isLegacyDigest(digest) {
		return h.cfg.verifyLegacy(secret, digest)
	}
	return false, ErrInvalidHash
}
