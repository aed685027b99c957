// Package auth — runner key verification.
//
// Match runners authenticate with a shared key sent in the X-Runner-Key
// header. The server never stores the key itself, only its bcrypt hash:
// if the database or config leaks, the key does not.
//
// WHY BCRYPT FOR A MACHINE KEY?
// bcrypt is designed to be slow, which matters less for machine-to-machine
// auth than for passwords — but it also handles salting and constant-time
// comparison for us, and the ~250ms cost is irrelevant for a worker that
// claims a match every few seconds. Reusing one well-understood primitive
// beats inventing a second scheme.
package auth

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// runnerKeyCost is the bcrypt work factor for hashing runner keys.
//
// Cost 12 takes roughly ~250ms on a modern server. Runners verify once per
// request, and runner traffic is a handful of requests per minute, so the
// cost is negligible.
const runnerKeyCost = 12

// RunnerKeyService verifies the X-Runner-Key header against a bcrypt hash.
//
// It's a struct (not free functions) so the hash is injected once at startup
// and the tests can construct one from a freshly hashed key.
type RunnerKeyService struct {
	hash []byte
}

// NewRunnerKeyService creates a RunnerKeyService from a bcrypt hash string,
// e.g. the output of HashRunnerKey stored in the RUNNER_KEY_HASH env var.
func NewRunnerKeyService(hash string) *RunnerKeyService {
	return &RunnerKeyService{hash: []byte(hash)}
}

// HashRunnerKey hashes a plaintext runner key with bcrypt.
//
// The output is a self-contained string that includes the salt and cost.
// Run this once when provisioning a runner and store the result in config.
func HashRunnerKey(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates input longer than 72 bytes.
		// We reject it explicitly so callers aren't surprised.
		return "", fmt.Errorf("auth: runner key must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), runnerKeyCost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing runner key: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext key matches the stored hash.
//
// Returns nil if they match, a non-nil error if they don't.
// bcrypt.CompareHashAndPassword uses a constant-time comparison internally,
// so an attacker can't tell from response time how close a guess was.
func (s *RunnerKeyService) Verify(plaintext string) error {
	err := bcrypt.CompareHashAndPassword(s.hash, []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid runner key")
		}
		return fmt.Errorf("auth: comparing runner key hash: %w", err)
	}
	return nil
}

// RequireRunnerKey is a middleware that guards the runner API.
//
// Every request must carry the shared key in the X-Runner-Key header.
// Unlike the player routes there is no cookie or session — runners are
// headless processes, and a static header is the simplest thing that works.
func RequireRunnerKey(keys *RunnerKeyService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Runner-Key")
			if key == "" || keys.Verify(key) != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid runner key required"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
