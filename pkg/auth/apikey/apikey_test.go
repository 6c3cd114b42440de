package apikey

import (
	"context"
	"errors"
	"testing"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/request"
)

func newTestAuth() *Authenticator {
	return New("api", []RawKeyEntry{
		{
			Key: "sk-test-key-1",
			Identity: auth.Identity{
				Subject:  "alice",
				Scopes:   []string{"read"},
				Metadata: map[string]string{"team": "platform"},
			},
		},
		{
			Key: "sk-test-key-2",
			Identity: auth.Identity{
				Subject: "bob",
			},
		},
	})
}

func newRequest(authorization string) *request.Request {
	r := request.New(nil, nil)
	if authorization != "" {
		r.SetHeader("Authorization", authorization)
	}
	return r
}

func TestValidKey(t *testing.T) {
	a := newTestAuth()

	result := a.Authenticate(context.Background(), newRequest("Bearer sk-test-key-1"))

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes", result.Decision)
	}
	if result.Identity.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "alice")
	}
	if result.Identity.Scheme != "apikey" {
		t.Errorf("Scheme = %q, want apikey", result.Identity.Scheme)
	}
	if result.Identity.Metadata["team"] != "platform" {
		t.Errorf("Metadata = %v", result.Identity.Metadata)
	}
}

func TestInvalidKey(t *testing.T) {
	a := newTestAuth()

	result := a.Authenticate(context.Background(), newRequest("Bearer sk-wrong-key"))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %v, want No", result.Decision)
	}
	if !errors.Is(result.Err, auth.ErrInvalidCredentials) {
		t.Errorf("Err = %v, want ErrInvalidCredentials", result.Err)
	}
}

func TestNoHeader(t *testing.T) {
	a := newTestAuth()

	result := a.Authenticate(context.Background(), newRequest(""))

	if result.Decision != auth.Abstain {
		t.Fatalf("Decision = %v, want Abstain", result.Decision)
	}
}

func TestNonBearerHeader(t *testing.T) {
	a := newTestAuth()

	result := a.Authenticate(context.Background(), newRequest("Basic dXNlcjpwYXNz"))

	if result.Decision != auth.Abstain {
		t.Fatalf("Decision = %v, want Abstain (non-Bearer)", result.Decision)
	}
}

func TestEmptyBearerToken(t *testing.T) {
	a := newTestAuth()

	result := a.Authenticate(context.Background(), newRequest("Bearer "))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %v, want No (empty token)", result.Decision)
	}
	if !errors.Is(result.Err, auth.ErrMalformedCredentials) {
		t.Errorf("Err = %v, want ErrMalformedCredentials", result.Err)
	}
}

func TestJWTShapedTokenAbstains(t *testing.T) {
	a := newTestAuth()

	result := a.Authenticate(context.Background(), newRequest("Bearer aaa.bbb.ccc"))

	if result.Decision != auth.Abstain {
		t.Fatalf("Decision = %v, want Abstain", result.Decision)
	}
}

func TestSecondKey(t *testing.T) {
	a := newTestAuth()

	result := a.Authenticate(context.Background(), newRequest("bearer sk-test-key-2"))

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes", result.Decision)
	}
	if result.Identity.Subject != "bob" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "bob")
	}
}

func TestIdentityNotShared(t *testing.T) {
	a := newTestAuth()

	first := a.Authenticate(context.Background(), newRequest("Bearer sk-test-key-2"))
	first.Identity.Subject = "mallory"

	second := a.Authenticate(context.Background(), newRequest("Bearer sk-test-key-2"))
	if second.Identity.Subject != "bob" {
		t.Errorf("stored identity mutated: %q", second.Identity.Subject)
	}
}

func TestChallenge(t *testing.T) {
	if got := newTestAuth().Challenge(nil, false); got != `Bearer realm="api"` {
		t.Errorf("Challenge = %q", got)
	}
	if got := New("", nil).Challenge(nil, false); got != "Bearer" {
		t.Errorf("Challenge without realm = %q", got)
	}
	if got := New(`a"b`, nil).Challenge(nil, false); got != `Bearer realm="a\"b"` {
		t.Errorf("Challenge with quote in realm = %q", got)
	}
}
