// Package apikey provides an API key authenticator that validates
// bearer tokens against a static key store using SHA-256 hashing
// and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/httpdigest"
	"github.com/rhuss/reqstate/pkg/request"
)

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys  []KeyEntry
	realm string
}

var (
	_ auth.Authenticator = (*Authenticator)(nil)
	_ auth.Challenger    = (*Authenticator)(nil)
)

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator from a list of raw keys and identities.
// Keys are hashed immediately; plaintext keys are not stored.
func New(realm string, entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{realm: realm}
	for _, e := range entries {
		id := e.Identity
		id.Scheme = "apikey"
		a.keys = append(a.keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: id,
		})
	}
	return a
}

// Authenticate extracts the bearer token and validates it.
// Returns Yes if valid, No if bearer token present but invalid,
// Abstain if no Authorization header, not a Bearer token, or a token
// shaped like a JWT (left to the jwt authenticator).
func (a *Authenticator) Authenticate(_ context.Context, req *request.Request) auth.AuthResult {
	token, ok := auth.BearerToken(req.Header("Authorization"))
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrMalformedCredentials, Scheme: "apikey"}
	}
	if strings.Count(token, ".") == 2 {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenHash := sha256.Sum256([]byte(token))

	// Every entry is compared so timing does not reveal the position.
	var match *KeyEntry
	for i := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], a.keys[i].KeyHash[:]) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidCredentials, Scheme: "apikey"}
	}

	// Copy identity to avoid shared state.
	id := match.Identity
	return auth.AuthResult{Decision: auth.Yes, Identity: &id, Scheme: "apikey"}
}

// Challenge implements auth.Challenger.
func (a *Authenticator) Challenge(_ *request.Request, _ bool) string {
	if a.realm == "" {
		return "Bearer"
	}
	return "Bearer realm=" + httpdigest.Quote(a.realm)
}
