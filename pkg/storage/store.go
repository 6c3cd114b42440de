package storage

import (
	"context"
	"time"

	"github.com/rhuss/reqstate/pkg/httpdigest"
)

// NonceStore tracks the highest nonce count seen per server nonce so a
// captured Digest response cannot be replayed.
type NonceStore interface {
	httpdigest.NonceCounter

	// Purge drops counters last advanced before olderThan and reports how
	// many were removed. Nonces that old have expired anyway.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ValidateAdvance checks the arguments of NonceCounter.Advance.
func ValidateAdvance(nonce string, nc uint64) error {
	if nonce == "" || nc == 0 {
		return ErrInvalidNonce
	}
	return nil
}
