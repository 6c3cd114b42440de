package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/reqstate/pkg/request"
	"github.com/rhuss/reqstate/pkg/transport"
)

func okHandler(called *bool) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
		return nil
	})
}

func newReq(path, peer string) *request.Request {
	req := request.New(nil, nil)
	req.SetMethod("GET")
	req.SetPath(path)
	req.SetRequestor(peer)
	return req
}

func serve(t *testing.T, h transport.Handler, req *request.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := h.ServeRequest(context.Background(), req, rec); err != nil {
		t.Fatalf("ServeRequest error: %v", err)
	}
	return rec
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	h := Middleware(chain, nil, []string{"/healthz"})(okHandler(nil))

	if rec := serve(t, h, newReq("/healthz", "10.0.0.1")); rec.Code != http.StatusOK {
		t.Errorf("bypass endpoint: status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_NoAuth_RejectsWithChallenges(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&challengingAuthn{mockAuthn{result: AuthResult{Decision: Abstain}, challenge: `Basic realm="r"`}},
			&challengingAuthn{mockAuthn{result: AuthResult{Decision: Abstain}, challenge: `Digest realm="r"`}},
		},
		DefaultDecision: No,
	}
	called := false
	h := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler(&called))

	rec := serve(t, h, newReq("/secret", "10.0.0.1"))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("handler called for unauthenticated request")
	}
	if got := rec.Header().Values("WWW-Authenticate"); len(got) != 2 {
		t.Errorf("WWW-Authenticate = %v, want 2 challenges", got)
	}
}

func TestMiddleware_StaleResultMarksChallenge(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&challengingAuthn{mockAuthn{
				result:    AuthResult{Decision: No, Err: ErrStaleNonce, Stale: true, Scheme: "digest"},
				challenge: `Digest realm="r"`,
			}},
		},
		DefaultDecision: No,
	}
	h := Middleware(chain, nil, nil)(okHandler(nil))

	rec := serve(t, h, newReq("/secret", "10.0.0.1"))

	if got := rec.Header().Get("WWW-Authenticate"); got != `Digest realm="r", stale=true` {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestMiddleware_ValidAuth_Passes(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{
				Decision: Yes,
				Identity: &Identity{Subject: "alice", Scheme: "basic"},
				Scheme:   "basic",
			}},
		},
		DefaultDecision: No,
	}

	var got *Identity
	h := Middleware(chain, nil, DefaultBypassEndpoints)(transport.HandlerFunc(
		func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
			got = IdentityFromContext(ctx)
			w.WriteHeader(http.StatusOK)
			return nil
		}))

	rec := serve(t, h, newReq("/secret", "10.0.0.1"))

	if rec.Code != http.StatusOK {
		t.Errorf("valid auth: status = %d, want 200", rec.Code)
	}
	if got == nil || got.Subject != "alice" {
		t.Errorf("identity in context = %+v, want alice", got)
	}
}

func TestMiddleware_EmptySubject(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{}}},
		},
	}
	h := Middleware(chain, nil, nil)(okHandler(nil))

	if rec := serve(t, h, newReq("/", "10.0.0.1")); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMiddleware_FailureLimit(t *testing.T) {
	bad := &mockAuthn{result: AuthResult{Decision: No, Err: ErrInvalidCredentials, Scheme: "basic"}}
	chain := &AuthChain{Authenticators: []Authenticator{bad}, DefaultDecision: No}
	limiter := NewInProcessLimiter(2, time.Minute)
	h := Middleware(chain, limiter, nil)(okHandler(nil))

	// Two wrong guesses are answered with 401.
	for i := range 2 {
		if rec := serve(t, h, newReq("/", "10.0.0.1")); rec.Code != http.StatusUnauthorized {
			t.Errorf("attempt %d: status = %d, want 401", i+1, rec.Code)
		}
	}

	// The third is throttled without consulting the chain.
	before := bad.calls
	rec := serve(t, h, newReq("/", "10.0.0.1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("throttled attempt: status = %d, want 429", rec.Code)
	}
	if bad.calls != before {
		t.Error("chain consulted while throttled")
	}

	// Other peers are unaffected.
	if rec := serve(t, h, newReq("/", "10.0.0.2")); rec.Code != http.StatusUnauthorized {
		t.Errorf("other peer: status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_MissingCredentialsNotCounted(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	limiter := NewInProcessLimiter(1, time.Minute)
	h := Middleware(chain, limiter, nil)(okHandler(nil))

	for i := range 3 {
		if rec := serve(t, h, newReq("/", "10.0.0.1")); rec.Code != http.StatusUnauthorized {
			t.Errorf("attempt %d: status = %d, want 401", i+1, rec.Code)
		}
	}
}

func TestMiddleware_NoLimiter_AllAllowed(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{Subject: "alice"}}},
		},
	}
	h := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler(nil))

	for i := range 100 {
		if rec := serve(t, h, newReq("/", "10.0.0.1")); rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
			break
		}
	}
}

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		r    AuthResult
		want string
	}{
		{AuthResult{Decision: Yes}, "success"},
		{AuthResult{Decision: No, Stale: true}, "nonce_expired"},
		{AuthResult{Decision: No, Err: ErrMalformedCredentials}, "malformed"},
		{AuthResult{Decision: No, Err: ErrInvalidCredentials}, "invalid_credentials"},
		{AuthResult{Decision: No, Err: ErrUnauthenticated}, "missing"},
	}
	for _, tt := range tests {
		if got := outcomeLabel(tt.r); got != tt.want {
			t.Errorf("outcomeLabel(%+v) = %q, want %q", tt.r, got, tt.want)
		}
	}
}

var _ Authenticator = (*mockAuthn)(nil)
var _ Challenger = (*challengingAuthn)(nil)
