// Package noop provides a no-op authenticator that accepts all requests.
// Used for development and as a default voter in the auth chain.
package noop

import (
	"context"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/request"
)

// Authenticator always returns Yes. The subject is the Basic or Digest
// username the client sent, or "anonymous".
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, req *request.Request) auth.AuthResult {
	subject := "anonymous"
	switch auth.Scheme(req.Header("Authorization")) {
	case "basic":
		if u := req.User(); u != "" {
			subject = u
		}
	case "digest":
		if u := req.DigestedUser(); u != "" {
			subject = u
		}
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject, Scheme: "none"},
		Scheme:   "none",
	}
}
