package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/request"
	"github.com/rhuss/reqstate/pkg/transport"
)

// dumpHandler answers with the diagnostic dump of the request state.
func dumpHandler(_ context.Context, req *request.Request, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if req.ContentTooLarge() {
		w.Header().Set("X-Content-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	return req.Dump(w)
}

type whoami struct {
	Subject   string   `json:"subject"`
	Scheme    string   `json:"scheme"`
	Scopes    []string `json:"scopes,omitempty"`
	Requestor string   `json:"requestor"`
	Port      uint16   `json:"port"`
	RequestID string   `json:"request_id,omitempty"`
}

// whoamiHandler reports the authenticated identity and peer as JSON.
func whoamiHandler(ctx context.Context, req *request.Request, w http.ResponseWriter) error {
	id := auth.IdentityFromContext(ctx)
	if id == nil {
		return transport.NewError(http.StatusUnauthorized, transport.ErrorTypeUnauthorized, "no identity")
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(whoami{
		Subject:   id.Subject,
		Scheme:    id.Scheme,
		Scopes:    id.Scopes,
		Requestor: req.Requestor(),
		Port:      req.RequestorPort(),
		RequestID: transport.RequestIDFromContext(ctx),
	})
}
