package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/reqstate/pkg/request"
	"github.com/rhuss/reqstate/pkg/transport"
)

// captured is what a test handler saw.
type captured struct {
	method    string
	path      string
	pieces    []string
	version   string
	content   string
	tooLarge  bool
	args      map[string]string
	requestID string
	userAgent string
}

func captureAdapter(cfg Config, c *captured) *Adapter {
	a := NewAdapter(cfg, transport.RequestID())
	a.HandleFunc("/", func(ctx context.Context, req *request.Request, w gohttp.ResponseWriter) error {
		c.method = req.Method()
		c.path = req.Path()
		c.pieces = req.PathPieces()
		c.version = req.Version()
		c.content = req.Content()
		c.tooLarge = req.ContentTooLarge()
		c.args = req.Args().Map()
		c.requestID = transport.RequestIDFromContext(ctx)
		c.userAgent = req.Header("user-agent")
		w.WriteHeader(gohttp.StatusNoContent)
		return nil
	})
	return a
}

func TestAdapterPopulatesRequest(t *testing.T) {
	var c captured
	srv := httptest.NewServer(captureAdapter(DefaultConfig(), &c).Handler())
	defer srv.Close()

	httpReq, _ := gohttp.NewRequest("PUT", srv.URL+"/api/v1/users/?q=go%20lang", strings.NewReader("payload"))
	httpReq.Header.Set("User-Agent", "reqstate-test")
	resp, err := gohttp.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != gohttp.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if c.method != "PUT" || c.path != "/api/v1/users/" || c.version != "HTTP/1.1" {
		t.Errorf("got %s %s %s", c.method, c.path, c.version)
	}
	if strings.Join(c.pieces, ",") != "api,v1,users" {
		t.Errorf("pieces = %v", c.pieces)
	}
	if c.content != "payload" || c.tooLarge {
		t.Errorf("content = %q tooLarge = %v", c.content, c.tooLarge)
	}
	if c.args["q"] != "go lang" {
		t.Errorf("arg q = %q", c.args["q"])
	}
	if c.userAgent != "reqstate-test" {
		t.Errorf("user agent = %q", c.userAgent)
	}
	if c.requestID == "" || resp.Header.Get("X-Request-ID") != c.requestID {
		t.Errorf("request ID %q not echoed (header %q)", c.requestID, resp.Header.Get("X-Request-ID"))
	}
}

func TestAdapterTruncatesBodyAtLimit(t *testing.T) {
	var c captured
	cfg := DefaultConfig()
	cfg.MaxBodySize = 10
	cfg.ReadChunkSize = 6
	srv := httptest.NewServer(captureAdapter(cfg, &c).Handler())
	defer srv.Close()

	resp, err := gohttp.Post(srv.URL+"/upload", "application/octet-stream", strings.NewReader(strings.Repeat("x", 100)))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()

	if len(c.content) != 10 {
		t.Errorf("content length = %d, want 10", len(c.content))
	}
	if !c.tooLarge {
		t.Error("ContentTooLarge = false, want true")
	}
}

func TestAdapterFormArgs(t *testing.T) {
	var c captured
	srv := httptest.NewServer(captureAdapter(DefaultConfig(), &c).Handler())
	defer srv.Close()

	resp, err := gohttp.Post(srv.URL+"/form?b=query", "application/x-www-form-urlencoded; charset=utf-8",
		strings.NewReader("a=1&a=2&b=form&name=J%C3%BCrgen"))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()

	if c.args["a"] != "2" {
		t.Errorf("a = %q, want last value 2", c.args["a"])
	}
	if c.args["b"] != "query" {
		t.Errorf("b = %q, want query argument to win", c.args["b"])
	}
	if c.args["name"] != "Jürgen" {
		t.Errorf("name = %q", c.args["name"])
	}
}

func TestAdapterPropagatesIncomingRequestID(t *testing.T) {
	var c captured
	srv := httptest.NewServer(captureAdapter(DefaultConfig(), &c).Handler())
	defer srv.Close()

	httpReq, _ := gohttp.NewRequest("GET", srv.URL+"/", nil)
	httpReq.Header.Set("X-Request-ID", "client-id-7")
	resp, err := gohttp.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	if c.requestID != "client-id-7" {
		t.Errorf("request ID = %q, want client-id-7", c.requestID)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "client-id-7" {
		t.Errorf("response header = %q", got)
	}
}

func TestAdapterHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"typed", transport.NewInvalidRequestError("bad input"), gohttp.StatusBadRequest, "invalid_request"},
		{"plain", errors.New("boom"), gohttp.StatusInternalServerError, "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(DefaultConfig())
			a.HandleFunc("/", func(ctx context.Context, req *request.Request, w gohttp.ResponseWriter) error {
				return tt.err
			})

			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body transport.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if string(body.Error.Type) != tt.wantType {
				t.Errorf("error type = %q, want %q", body.Error.Type, tt.wantType)
			}
		})
	}
}

func TestAdapterErrorAfterWriteKeepsResponse(t *testing.T) {
	a := NewAdapter(DefaultConfig())
	a.HandleFunc("/", func(ctx context.Context, req *request.Request, w gohttp.ResponseWriter) error {
		io.WriteString(w, "partial")
		return errors.New("late failure")
	})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != gohttp.StatusOK || rec.Body.String() != "partial" {
		t.Errorf("got %d %q, want 200 partial", rec.Code, rec.Body.String())
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestAdapterBodyReadError(t *testing.T) {
	called := false
	a := NewAdapter(DefaultConfig())
	a.HandleFunc("/", func(ctx context.Context, req *request.Request, w gohttp.ResponseWriter) error {
		called = true
		return nil
	})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/", failingReader{}))

	if rec.Code != gohttp.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if called {
		t.Error("handler called despite body read error")
	}
}

func TestAdapterHandleHTTPBypassesState(t *testing.T) {
	a := NewAdapter(DefaultConfig())
	a.HandleHTTP("GET /healthz", gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		io.WriteString(w, "ok")
	}))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	a := NewAdapter(DefaultConfig())
	a.HandleFunc("GET /known", func(ctx context.Context, req *request.Request, w gohttp.ResponseWriter) error {
		return nil
	})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/unknown", nil))
	if rec.Code != gohttp.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
