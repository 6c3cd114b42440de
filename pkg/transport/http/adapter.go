package http

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/rhuss/reqstate/pkg/debug"
	"github.com/rhuss/reqstate/pkg/httpdigest"
	"github.com/rhuss/reqstate/pkg/observability"
	"github.com/rhuss/reqstate/pkg/request"
	"github.com/rhuss/reqstate/pkg/transport"
)

// Adapter turns net/http requests into *request.Request values and
// dispatches them to transport.Handlers through the middleware chain.
type Adapter struct {
	mux        *http.ServeMux
	middleware transport.Middleware
	config     Config
	logger     *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// MaxBodySize bounds the accumulated body. Zero or negative means no
	// limit. Reading stops once the limit is reached; the rest of the body
	// is discarded.
	MaxBodySize int64

	// ReadChunkSize is the buffer size used to stream the body into the
	// request (default 32 KiB).
	ReadChunkSize int

	// Verifier checks Digest credentials. Nil selects httpdigest.Default().
	Verifier *httpdigest.Verifier

	// Unescaper decodes query argument values. Nil selects
	// request.QueryUnescape.
	Unescaper request.Unescaper

	Logger *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:   10 << 20, // 10 MB
		ReadChunkSize: 32 << 10,
	}
}

// NewAdapter creates an HTTP adapter. Middleware is applied to every
// handler registered with Handle, in the given order.
func NewAdapter(cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.ReadChunkSize <= 0 {
		cfg.ReadChunkSize = 32 << 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		mux:        http.NewServeMux(),
		middleware: transport.Chain(middlewares...),
		config:     cfg,
		logger:     logger,
	}
}

// Handle registers h for the ServeMux pattern, wrapped in the adapter's
// middleware.
func (a *Adapter) Handle(pattern string, h transport.Handler) {
	a.mux.Handle(pattern, a.serve(a.middleware(h)))
}

// HandleFunc registers f for pattern.
func (a *Adapter) HandleFunc(pattern string, f transport.HandlerFunc) {
	a.Handle(pattern, f)
}

// HandleHTTP registers a plain http.Handler that bypasses request state
// and middleware, e.g. health and metrics endpoints.
func (a *Adapter) HandleHTTP(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler records
// metrics and propagates the X-Request-ID header.
func (a *Adapter) Handler() http.Handler {
	return observability.MetricsMiddleware(httpRequestIDMiddleware(a.mux))
}

// NewRequest builds the request state for r without reading the body.
func (a *Adapter) NewRequest(r *http.Request) *request.Request {
	opts := []request.Option{}
	if a.config.Verifier != nil {
		opts = append(opts, request.WithVerifier(a.config.Verifier))
	}
	if a.config.MaxBodySize > 0 {
		opts = append(opts, request.WithContentSizeLimit(int(a.config.MaxBodySize)))
	}

	req := request.New(NewConn(r), a.config.Unescaper, opts...)
	req.SetMethod(r.Method)
	req.SetPath(r.URL.Path)
	req.SetVersion(r.Proto)
	return req
}

func (a *Adapter) serve(h transport.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := a.NewRequest(r)

		if err := a.readBody(req, r.Body); err != nil {
			a.logger.Warn("reading request body failed",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"error", err,
			)
			transport.WriteError(w, http.StatusBadRequest, transport.ErrorTypeInvalidRequest, "could not read request body")
			return
		}
		observability.ObserveBody(len(req.ContentBytes()), req.ContentTooLarge())
		addFormArgs(req, r.Header.Get("Content-Type"))

		tw := &trackingWriter{ResponseWriter: w}
		if err := h.ServeRequest(r.Context(), req, tw); err != nil {
			if tw.wrote {
				a.logger.Error("handler failed after writing response",
					"path", r.URL.Path,
					"error", err,
				)
				return
			}
			transport.WriteErrorFrom(tw, err)
		}
	})
}

// readBody streams body into req until EOF or until the content size
// limit is reached.
func (a *Adapter) readBody(req *request.Request, body io.Reader) error {
	if body == nil || body == http.NoBody {
		return nil
	}
	buf := make([]byte, a.config.ReadChunkSize)
	for !req.ContentTooLarge() {
		n, err := body.Read(buf)
		req.GrowContent(buf[:n])
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	debug.Log("transport", "body reached size limit",
		"path", req.Path(),
		"limit", req.ContentSizeLimit(),
	)
	return nil
}

// addFormArgs stores urlencoded form fields as arguments. Query
// arguments with the same name take precedence once enumerated.
func addFormArgs(req *request.Request, contentType string) {
	if contentType == "" || req.ContentTooLarge() {
		return
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "application/x-www-form-urlencoded" {
		return
	}
	// ParseQuery returns what it could parse alongside the first error.
	vals, _ := url.ParseQuery(req.Content())
	for k, vs := range vals {
		req.SetArg(k, vs[len(vs)-1])
	}
}

// httpRequestIDMiddleware propagates the X-Request-ID header into the
// context and sets it on the response before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(transport.RequestIDHeader); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
			w.Header().Set(transport.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// trackingWriter records whether the handler started the response.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *trackingWriter) WriteHeader(statusCode int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.wrote = true
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
