// Package digest provides an HTTP Digest authenticator (RFC 7616) over a
// static user table. Nonces are issued and verified by an
// httpdigest.Verifier, which must be the same verifier the requests were
// built with (request.WithVerifier) so issued nonces verify.
package digest

import (
	"context"
	"time"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/debug"
	"github.com/rhuss/reqstate/pkg/httpdigest"
	"github.com/rhuss/reqstate/pkg/observability"
	"github.com/rhuss/reqstate/pkg/request"
)

// Config holds the Digest authenticator configuration.
type Config struct {
	Realm string

	// Users maps usernames to plaintext passwords. Digest needs the
	// password itself to recompute the response.
	Users map[string]string

	// NonceTimeout bounds nonce age. Zero selects
	// httpdigest.DefaultNonceTimeout, a negative value never expires.
	NonceTimeout time.Duration

	// Algorithm announced in challenges. Default: MD5.
	Algorithm httpdigest.Algorithm

	// QOP announced in challenges: "auth", "auth-int", "auth,auth-int"
	// or "" for RFC 2069 style exchanges. Default: "auth".
	QOP string

	Opaque string
}

// Authenticator verifies Digest credentials.
type Authenticator struct {
	config   Config
	verifier *httpdigest.Verifier
}

var (
	_ auth.Authenticator = (*Authenticator)(nil)
	_ auth.Challenger    = (*Authenticator)(nil)
)

// New creates a Digest authenticator. A nil verifier selects
// httpdigest.Default().
func New(cfg Config, verifier *httpdigest.Verifier) *Authenticator {
	if cfg.Algorithm == "" {
		cfg.Algorithm = httpdigest.MD5
	}
	if cfg.QOP == "" {
		cfg.QOP = httpdigest.QOPAuth
	}
	if verifier == nil {
		verifier = httpdigest.Default()
	}
	return &Authenticator{config: cfg, verifier: verifier}
}

// Authenticate abstains unless the request carries Digest credentials.
func (a *Authenticator) Authenticate(ctx context.Context, req *request.Request) auth.AuthResult {
	if auth.Scheme(req.Header("Authorization")) != "digest" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if req.DigestVerifier() != a.verifier {
		debug.Log("auth", "request verifier differs from digest authenticator verifier")
	}

	user := req.DigestedUser()
	password, known := a.config.Users[user]
	res := req.CheckDigestAuth(ctx, a.config.Realm, password, a.config.NonceTimeout)

	switch res.Outcome {
	case httpdigest.Success:
		if !known {
			break
		}
		return auth.AuthResult{
			Decision: auth.Yes,
			Identity: &auth.Identity{Subject: res.Username, Scheme: "digest"},
			Scheme:   "digest",
		}
	case httpdigest.NonceExpired:
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrStaleNonce, Stale: true, Scheme: "digest"}
	case httpdigest.Malformed:
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrMalformedCredentials, Scheme: "digest"}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidCredentials, Scheme: "digest"}
}

// Challenge issues a fresh nonce and renders the WWW-Authenticate value.
func (a *Authenticator) Challenge(_ *request.Request, stale bool) string {
	observability.DigestNoncesIssuedTotal.Inc()
	return httpdigest.Challenge{
		Realm:     a.config.Realm,
		Nonce:     a.verifier.NewNonce(a.config.Realm),
		Opaque:    a.config.Opaque,
		Algorithm: a.config.Algorithm,
		QOP:       a.config.QOP,
		Stale:     stale,
	}.String()
}
