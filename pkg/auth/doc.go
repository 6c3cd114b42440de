// Package auth provides pluggable authentication over request state.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Authenticators read credentials through the lazy getters of
// *request.Request (User, Pass, DigestedUser, CheckDigestAuth), so the
// Authorization header is parsed at most once per request. Authenticators
// that implement Challenger contribute WWW-Authenticate values to 401
// answers; a Digest result with Stale set asks the client to retry with a
// fresh nonce instead of prompting for a new password.
//
// Auth is implemented as transport middleware, keeping it decoupled from
// handlers. Repeated failures from one peer are throttled by a
// FailureLimiter.
package auth
