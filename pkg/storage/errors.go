package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("nonce store closed")

	// ErrInvalidNonce is returned for an empty nonce or a zero count.
	ErrInvalidNonce = errors.New("invalid nonce or nonce count")
)
