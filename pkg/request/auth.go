package request

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/rhuss/reqstate/pkg/httpdigest"
)

// ParseBasicAuth decodes an Authorization header of the Basic scheme.
// "Basic dXNlcjpwYXNz" returns ("user", "pass", true).
func ParseBasicAuth(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	c, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(c), ":")
}

// User returns the Basic auth username, or "" when the request carries
// no usable Basic credentials.
func (r *Request) User() string {
	r.loadBasicAuth()
	return r.user
}

// Pass returns the Basic auth password.
func (r *Request) Pass() string {
	r.loadBasicAuth()
	return r.pass
}

// SetUser overrides the Basic auth username.
func (r *Request) SetUser(user string) {
	r.loadBasicAuth()
	r.user = user
}

// SetPass overrides the Basic auth password.
func (r *Request) SetPass(pass string) {
	r.loadBasicAuth()
	r.pass = pass
}

func (r *Request) loadBasicAuth() {
	if r.basicAuthLoaded {
		return
	}
	r.basicAuthLoaded = true
	if user, pass, ok := ParseBasicAuth(r.Header("Authorization")); ok {
		r.user, r.pass = user, pass
	}
}

// DigestedUser returns the username presented with Digest credentials,
// whether or not they verify.
func (r *Request) DigestedUser() string {
	if !r.digestAuthLoaded {
		r.digestAuthLoaded = true
		r.digestedUser = httpdigest.Username(r.Header("Authorization"))
	}
	return r.digestedUser
}

// SetDigestedUser overrides the Digest username.
func (r *Request) SetDigestedUser(user string) {
	r.digestAuthLoaded = true
	r.digestedUser = user
}

// CheckDigestAuth verifies the Digest credentials of the request against
// realm and password. The request method, path and body feed the digest.
// A result with ReloadNonce set asks the caller to send a new challenge
// with stale=true rather than treat the attempt as a wrong password.
func (r *Request) CheckDigestAuth(ctx context.Context, realm, password string, nonceTimeout time.Duration) httpdigest.Result {
	v := r.verifier
	if v == nil {
		v = httpdigest.Default()
	}

	res := v.Verify(ctx, httpdigest.Input{
		Header:   r.Header("Authorization"),
		Method:   r.method,
		Path:     r.path,
		Query:    r.Querystring(),
		Body:     r.content,
		Realm:    realm,
		Password: password,
		Timeout:  nonceTimeout,
	})

	if !r.digestAuthLoaded {
		r.digestAuthLoaded = true
		r.digestedUser = res.Username
	}
	return res
}

// DigestVerifier returns the verifier CheckDigestAuth uses.
func (r *Request) DigestVerifier() *httpdigest.Verifier {
	if r.verifier == nil {
		return httpdigest.Default()
	}
	return r.verifier
}
