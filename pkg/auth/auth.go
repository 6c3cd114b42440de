package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rhuss/reqstate/pkg/request"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

func (d AuthDecision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No

	// Scheme names the authenticator that decided ("basic", "digest", ...).
	Scheme string

	// Stale marks a No caused by an expired or unknown Digest nonce. The
	// client should retry with a fresh nonce rather than new credentials.
	Stale bool
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// Scheme is the authentication scheme that produced the identity.
	Scheme string

	// Scopes lists the authorization scopes granted.
	Scopes []string

	// Metadata carries auth-provider-specific data.
	Metadata map[string]string
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, req *request.Request) AuthResult
}

// Challenger is implemented by authenticators that can tell a client how
// to authenticate. Challenge returns a WWW-Authenticate value; stale is
// set when the previous attempt failed only because its nonce expired.
type Challenger interface {
	Challenge(req *request.Request, stale bool) string
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("too many failed authentication attempts")

	// ErrInvalidCredentials means credentials were understood but wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedCredentials means the Authorization header could not be
	// parsed for the scheme it names.
	ErrMalformedCredentials = errors.New("malformed credentials")

	// ErrStaleNonce means a Digest nonce expired, was forged, or replayed.
	ErrStaleNonce = errors.New("stale nonce")
)

// Scheme returns the lower-cased authentication scheme of an
// Authorization header value, or "" when there is none.
func Scheme(header string) string {
	scheme, _, _ := strings.Cut(strings.TrimSpace(header), " ")
	return strings.ToLower(scheme)
}

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Use Yes for development (NoOp behavior) or No for production.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, req *request.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, req)
		if result.Decision != Abstain {
			return result
		}
	}

	// All abstained: use default.
	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", Scheme: "none"},
			Scheme:   "none",
		}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
		Scheme:   "none",
	}
}

// Challenges collects WWW-Authenticate values from every authenticator in
// the chain that implements Challenger.
func (c *AuthChain) Challenges(req *request.Request, stale bool) []string {
	var out []string
	for _, authn := range c.Authenticators {
		if ch, ok := authn.(Challenger); ok {
			if v := ch.Challenge(req, stale); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// BearerToken extracts the token of a Bearer Authorization header. ok is
// false when the header uses another scheme; an empty token with ok set
// means "Bearer" was sent without a value.
func BearerToken(header string) (token string, ok bool) {
	if Scheme(header) != "bearer" {
		return "", false
	}
	_, token, _ = strings.Cut(strings.TrimSpace(header), " ")
	return strings.TrimSpace(token), true
}
