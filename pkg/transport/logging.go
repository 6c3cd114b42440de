package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/reqstate/pkg/request"
)

// Logging returns middleware that emits one structured log entry per
// request with method, path, peer, body size, duration and request ID.
// Failed requests are logged at Error level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
			start := time.Now()

			err := next.ServeRequest(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("method", req.Method()),
				slog.String("path", req.Path()),
				slog.String("requestor", req.Requestor()),
				slog.Int("content_bytes", len(req.ContentBytes())),
				slog.Duration("duration", time.Since(start)),
			}
			if req.ContentTooLarge() {
				attrs = append(attrs, slog.Bool("truncated", true))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return err
		})
	}
}
