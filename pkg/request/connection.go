package request

import (
	"net"
	"net/url"
)

// Kind selects which collection a Connection enumerates.
type Kind int

const (
	HeaderKind Kind = iota
	FooterKind
	CookieKind
	ArgumentKind
)

func (k Kind) String() string {
	switch k {
	case HeaderKind:
		return "header"
	case FooterKind:
		return "footer"
	case CookieKind:
		return "cookie"
	case ArgumentKind:
		return "argument"
	default:
		return "unknown"
	}
}

// Visitor receives one key/value pair during enumeration.
type Visitor func(key, value string)

// Connection is the transport side of a request: the component that owns
// the live connection and has already parsed the wire format. A Request
// holds a Connection without owning it and never closes it.
type Connection interface {
	// Enumerate calls visit once per entry of the given kind, in no
	// particular order.
	Enumerate(kind Kind, visit Visitor)

	// PeerAddr returns the remote endpoint of the connection.
	PeerAddr() net.Addr
}

// QueryProvider is implemented by connections that keep the raw query
// string. Request.Querystring prefers it over rebuilding the string from
// the arguments.
type QueryProvider interface {
	RawQuery() string
}

// Unescaper decodes a raw argument value. Implementations must be safe
// for concurrent use; a single Unescaper is shared by all requests.
type Unescaper func(string) string

// QueryUnescape is the default Unescaper. Values that fail to decode are
// kept as they arrived.
func QueryUnescape(s string) string {
	v, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return v
}
