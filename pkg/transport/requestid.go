package transport

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/rhuss/reqstate/pkg/request"
)

// RequestIDHeader carries the request ID on the way in and out.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns a unique request ID to each
// request. An ID already in the context (set by the HTTP adapter from the
// X-Request-ID header) is kept, otherwise the request's own X-Request-ID
// header is used, and failing both a random UUID is generated. The ID is
// echoed in the response header.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
			id := RequestIDFromContext(ctx)
			if id == "" {
				id = req.Header(RequestIDHeader)
			}
			if id == "" {
				id = uuid.NewString()
			}
			ctx = ContextWithRequestID(ctx, id)
			w.Header().Set(RequestIDHeader, id)
			return next.ServeRequest(ctx, req, w)
		})
	}
}
