package transport

import (
	"context"
	"net/http"

	"github.com/rhuss/reqstate/pkg/request"
)

// Handler processes one request. The Request is fully received: its body
// is accumulated up to the configured limit and its lazy collections are
// ready to be read. A returned error that was not yet written to w is
// rendered by the adapter.
type Handler interface {
	ServeRequest(ctx context.Context, req *request.Request, w http.ResponseWriter) error
}

// HandlerFunc is an adapter that allows using an ordinary function as a
// Handler.
type HandlerFunc func(ctx context.Context, req *request.Request, w http.ResponseWriter) error

// ServeRequest calls f(ctx, req, w).
func (f HandlerFunc) ServeRequest(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
	return f(ctx, req, w)
}
