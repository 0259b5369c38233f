package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// Hasher wraps bcrypt. Both directions run under a timeout because the
// cost factor makes them deliberately slow.
type Hasher struct {
	cost    int
	timeout time.Duration
}

func NewHasher(cost int, timeout time.Duration) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Hasher{cost: cost, timeout: timeout}
}

type hashResult struct {
	hash []byte
	err  error
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	done := make(chan hashResult, 1)
	go func() {
		b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
		done <- hashResult{hash: b, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		return string(r.hash), nil
	case <-ctx.Done():
		return "", ErrHashTimeout
	}
}

// Verify reports whether candidate matches hash. A mismatch is not an
// error; only an unreadable hash or a timeout is.
func (h *Hasher) Verify(ctx context.Context, hash, candidate string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	}()

	select {
	case err := <-done:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, ErrMalformedHash
		}
	case <-ctx.Done():
		return false, ErrHashTimeout
	}
}
