package http

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/rhuss/reqstate/pkg/request"
)

// Conn exposes an *http.Request as a request.Connection. Values are handed
// out as net/http parsed them, except query arguments which keep their
// escaped form so the Request's Unescaper sees the raw value.
type Conn struct {
	r *http.Request
}

var (
	_ request.Connection    = (*Conn)(nil)
	_ request.QueryProvider = (*Conn)(nil)
)

// NewConn wraps r.
func NewConn(r *http.Request) *Conn {
	return &Conn{r: r}
}

// Enumerate implements request.Connection. Repeated header fields are
// joined with ", ". The Host header, which net/http moves out of
// r.Header, is reported like any other header.
func (c *Conn) Enumerate(kind request.Kind, visit request.Visitor) {
	switch kind {
	case request.HeaderKind:
		if c.r.Host != "" {
			visit("Host", c.r.Host)
		}
		for k, vs := range c.r.Header {
			visit(k, strings.Join(vs, ", "))
		}
	case request.FooterKind:
		for k, vs := range c.r.Trailer {
			visit(k, strings.Join(vs, ", "))
		}
	case request.CookieKind:
		for _, ck := range c.r.Cookies() {
			visit(ck.Name, ck.Value)
		}
	case request.ArgumentKind:
		enumerateQuery(c.RawQuery(), visit)
	}
}

func enumerateQuery(raw string, visit request.Visitor) {
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		visit(key, value)
	}
}

// PeerAddr implements request.Connection by parsing r.RemoteAddr.
func (c *Conn) PeerAddr() net.Addr {
	if c.r.RemoteAddr == "" {
		return nil
	}
	if ap, err := netip.ParseAddrPort(c.r.RemoteAddr); err == nil {
		return net.TCPAddrFromAddrPort(ap)
	}
	return remoteAddr(c.r.RemoteAddr)
}

// RawQuery implements request.QueryProvider.
func (c *Conn) RawQuery() string {
	if c.r.URL == nil {
		return ""
	}
	return c.r.URL.RawQuery
}

// remoteAddr is a RemoteAddr net/http could not parse, e.g. from a unix
// socket listener.
type remoteAddr string

func (a remoteAddr) Network() string { return "unknown" }
func (a remoteAddr) String() string  { return string(a) }
