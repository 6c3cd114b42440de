package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rhuss/reqstate/pkg/observability"
	"github.com/rhuss/reqstate/pkg/request"
	"github.com/rhuss/reqstate/pkg/transport"
)

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware creates transport middleware from an AuthChain and an
// optional FailureLimiter. It checks the bypass list, enforces the failure
// limit for the peer, runs authentication, answers 401 with the chain's
// challenges on failure, and injects the identity into the context.
func Middleware(chain *AuthChain, limiter FailureLimiter, bypassEndpoints []string) transport.Middleware {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
			if bypass[req.Path()] {
				return next.ServeRequest(ctx, req, w)
			}

			peer := req.Requestor()

			if limiter != nil {
				if err := limiter.Allow(ctx, peer); err != nil {
					slog.Warn("authentication throttled",
						"path", req.Path(),
						"remote_addr", peer,
					)
					observability.ThrottledTotal.Inc()
					w.Header().Set("Retry-After", "60")
					transport.WriteError(w, http.StatusTooManyRequests, transport.ErrorTypeTooManyRequests, err.Error())
					return nil
				}
			}

			result := chain.Authenticate(ctx, req)
			observability.AuthAttemptsTotal.WithLabelValues(schemeLabel(result), outcomeLabel(result)).Inc()

			if result.Decision != Yes || result.Identity == nil {
				if limiter != nil && countsAsFailure(result) {
					limiter.Fail(ctx, peer)
				}
				slog.Warn("authentication failed",
					"path", req.Path(),
					"remote_addr", peer,
					"scheme", result.Scheme,
					"stale", result.Stale,
					"error", result.Err,
				)
				for _, c := range chain.Challenges(req, result.Stale) {
					w.Header().Add("WWW-Authenticate", c)
				}
				transport.WriteError(w, http.StatusUnauthorized, transport.ErrorTypeUnauthorized, "authentication required")
				return nil
			}

			// Validate identity.
			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject", "scheme", result.Scheme)
				transport.WriteError(w, http.StatusInternalServerError, transport.ErrorTypeServerError, "internal authentication error")
				return nil
			}

			if limiter != nil {
				limiter.Reset(ctx, peer)
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"scheme", result.Scheme,
				"path", req.Path(),
				"remote_addr", peer,
			)

			return next.ServeRequest(SetIdentity(ctx, result.Identity), req, w)
		})
	}
}

// countsAsFailure reports whether a rejection was a wrong guess. Missing
// credentials and stale nonces are part of the normal challenge flow.
func countsAsFailure(r AuthResult) bool {
	return errors.Is(r.Err, ErrInvalidCredentials) || errors.Is(r.Err, ErrMalformedCredentials)
}

func outcomeLabel(r AuthResult) string {
	switch {
	case r.Decision == Yes:
		return "success"
	case r.Stale || errors.Is(r.Err, ErrStaleNonce):
		return "nonce_expired"
	case errors.Is(r.Err, ErrMalformedCredentials):
		return "malformed"
	case errors.Is(r.Err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "missing"
	}
}

func schemeLabel(r AuthResult) string {
	if r.Scheme == "" {
		return "unknown"
	}
	return r.Scheme
}
