// Package basic provides an HTTP Basic authenticator backed by a static
// user table.
package basic

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/httpdigest"
	"github.com/rhuss/reqstate/pkg/request"
)

// Authenticator checks Basic credentials. Passwords are kept as SHA-256
// hashes only.
type Authenticator struct {
	realm string
	users map[string][32]byte
}

var (
	_ auth.Authenticator = (*Authenticator)(nil)
	_ auth.Challenger    = (*Authenticator)(nil)
)

// dummyHash is compared for unknown users so the response time does not
// reveal which usernames exist.
var dummyHash = sha256.Sum256([]byte("reqstate-unknown-user"))

// New creates a Basic authenticator. users maps usernames to passwords.
func New(realm string, users map[string]string) *Authenticator {
	a := &Authenticator{realm: realm, users: make(map[string][32]byte, len(users))}
	for u, p := range users {
		a.users[u] = sha256.Sum256([]byte(p))
	}
	return a
}

// Authenticate abstains unless the request carries Basic credentials.
func (a *Authenticator) Authenticate(_ context.Context, req *request.Request) auth.AuthResult {
	if auth.Scheme(req.Header("Authorization")) != "basic" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	user := req.User()
	if user == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrMalformedCredentials, Scheme: "basic"}
	}

	want, known := a.users[user]
	if !known {
		want = dummyHash
	}
	got := sha256.Sum256([]byte(req.Pass()))
	if subtle.ConstantTimeCompare(got[:], want[:]) != 1 || !known {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidCredentials, Scheme: "basic"}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: user, Scheme: "basic"},
		Scheme:   "basic",
	}
}

// Challenge implements auth.Challenger.
func (a *Authenticator) Challenge(_ *request.Request, _ bool) string {
	return "Basic realm=" + httpdigest.Quote(a.realm) + `, charset="UTF-8"`
}
