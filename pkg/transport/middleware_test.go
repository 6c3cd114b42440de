package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/rhuss/reqstate/pkg/request"
)

func newRequest(path string) *request.Request {
	req := request.New(nil, nil)
	req.SetMethod("GET")
	req.SetPath(path)
	return req
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
				order = append(order, name+":before")
				err := next.ServeRequest(ctx, req, w)
				order = append(order, name+":after")
				return err
			})
		}
	}

	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		order = append(order, "handler")
		return nil
	})

	wrapped := Chain(mw("first"), nil, mw("second"), mw("third"))(handler)
	wrapped.ServeRequest(context.Background(), newRequest("/"), httptest.NewRecorder())

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}
	if diff := cmp.Diff(expected, order); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		panic("test panic")
	})

	err := Recovery()(handler).ServeRequest(context.Background(), newRequest("/boom"), httptest.NewRecorder())
	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Type != ErrorTypeServerError || e.Status != http.StatusInternalServerError {
		t.Errorf("error = %+v, want server_error/500", e)
	}
	if !strings.Contains(e.Message, "test panic") {
		t.Errorf("error message = %q, should contain %q", e.Message, "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		return nil
	})

	if err := Recovery()(handler).ServeRequest(context.Background(), newRequest("/"), httptest.NewRecorder()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestIDGeneratesUUID(t *testing.T) {
	var capturedID string
	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	rec := httptest.NewRecorder()
	RequestID()(handler).ServeRequest(context.Background(), newRequest("/"), rec)

	if _, err := uuid.Parse(capturedID); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", capturedID, err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != capturedID {
		t.Errorf("response header = %q, want %q", got, capturedID)
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string
	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	t.Run("from context", func(t *testing.T) {
		ctx := ContextWithRequestID(context.Background(), "existing-id-123")
		RequestID()(handler).ServeRequest(ctx, newRequest("/"), httptest.NewRecorder())
		if capturedID != "existing-id-123" {
			t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
		}
	})

	t.Run("from header", func(t *testing.T) {
		req := newRequest("/")
		req.SetHeader("x-request-id", "hdr-42")
		RequestID()(handler).ServeRequest(context.Background(), req, httptest.NewRecorder())
		if capturedID != "hdr-42" {
			t.Errorf("request ID = %q, want %q", capturedID, "hdr-42")
		}
	})
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		ids[RequestIDFromContext(ctx)] = true
		return nil
	})

	wrapped := RequestID()(handler)
	for range 100 {
		wrapped.ServeRequest(context.Background(), newRequest("/"), httptest.NewRecorder())
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		return nil
	})

	req := newRequest("/v1/items")
	req.SetContent("hello")
	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	Logging(logger)(handler).ServeRequest(ctx, req, httptest.NewRecorder())

	output := buf.String()
	for _, expected := range []string{
		"request_id=req-log-test",
		"method=GET",
		"path=/v1/items",
		"content_bytes=5",
		"request completed",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingEmitsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := HandlerFunc(func(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
		return NewServerError("test failure")
	})

	Logging(logger)(handler).ServeRequest(context.Background(), newRequest("/"), httptest.NewRecorder())

	output := buf.String()
	if !strings.Contains(output, "request failed") {
		t.Errorf("log output missing 'request failed' in:\n%s", output)
	}
	if !strings.Contains(output, "test failure") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}
