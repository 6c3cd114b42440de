package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/rhuss/reqstate/pkg/request"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server errors. The server continues to accept new
// requests after a panic is recovered.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("handler panic",
						"request_id", RequestIDFromContext(ctx),
						"path", req.Path(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					retErr = NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.ServeRequest(ctx, req, w)
		})
	}
}
