// Package transport defines the handler interface and middleware chain
// that sit between a wire adapter and application code.
//
// An adapter (see pkg/transport/http) turns each inbound request into a
// *request.Request, then dispatches it to a Handler wrapped in the
// configured Middleware. Handlers read the request state through the lazy
// getters of pkg/request and write their reply to a plain
// http.ResponseWriter.
//
// # Middleware
//
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID, generated with google/uuid when absent) and structured
// logging via log/slog. Authentication is middleware too, see pkg/auth.
//
// # Errors
//
// Handlers report failures by returning an error. A *Error carries the
// HTTP status and a machine readable type; anything else is reported as a
// server error. WriteError renders the JSON body
// {"error":{"type":...,"message":...}}.
package transport
