// Package request holds the per-request state between a transport and
// the application.
//
// A Request is populated in two ways. During the receive phase the
// transport calls the Set* methods and streams the body through
// GrowContent (or Write). Headers, footers, cookies, arguments, the peer
// address and the authentication fields are materialized lazily: the
// first getter call enumerates the Connection once and caches the result,
// later calls never go back to the transport.
//
// A Request belongs to the goroutine handling the request and is not safe
// for concurrent use.
package request

import (
	"math"
	"net/url"
	"strings"

	"github.com/rhuss/reqstate/pkg/httpdigest"
)

// NoContentLimit is the default content size limit.
const NoContentLimit = math.MaxInt

type lazyValues struct {
	kind   Kind
	loaded bool
	values *Values
}

func newLazy(kind Kind, policy KeyPolicy) lazyValues {
	return lazyValues{kind: kind, values: NewValues(policy)}
}

// Request is the state of one inbound HTTP request.
type Request struct {
	conn     Connection
	unescape Unescaper
	verifier *httpdigest.Verifier

	method     string
	path       string
	pathPieces []string
	version    string

	headers lazyValues
	footers lazyValues
	cookies lazyValues
	args    lazyValues

	querystring       string
	querystringLoaded bool

	content          []byte
	contentSizeLimit int

	user             string
	pass             string
	digestedUser     string
	basicAuthLoaded  bool
	digestAuthLoaded bool

	requestor       string
	requestorPort   uint16
	requestorLoaded bool
}

// Option configures a Request.
type Option func(*Request)

// WithVerifier sets the Digest verifier used by CheckDigestAuth. Without
// it httpdigest.Default() is used.
func WithVerifier(v *httpdigest.Verifier) Option {
	return func(r *Request) { r.verifier = v }
}

// WithContentSizeLimit sets the initial content size limit.
func WithContentSizeLimit(n int) Option {
	return func(r *Request) { r.SetContentSizeLimit(n) }
}

// New creates a Request reading lazily from conn. conn may be nil, in
// which case every lazy collection is empty. A nil unescape selects
// QueryUnescape.
func New(conn Connection, unescape Unescaper, opts ...Option) *Request {
	if unescape == nil {
		unescape = QueryUnescape
	}
	r := &Request{
		conn:             conn,
		unescape:         unescape,
		pathPieces:       []string{},
		headers:          newLazy(HeaderKind, CaseInsensitive),
		footers:          newLazy(FooterKind, CaseInsensitive),
		cookies:          newLazy(CookieKind, CaseInsensitive),
		args:             newLazy(ArgumentKind, CaseSensitive),
		contentSizeLimit: NoContentLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Method returns the request method.
func (r *Request) Method() string { return r.method }

// SetMethod sets the method, upper-cased.
func (r *Request) SetMethod(method string) { r.method = strings.ToUpper(method) }

// Path returns the decoded request path.
func (r *Request) Path() string { return r.path }

// SetPath sets the path and re-tokenizes it.
func (r *Request) SetPath(path string) {
	r.path = path
	r.pathPieces = SplitPath(path)
}

// PathPieces returns the non-empty path segments.
func (r *Request) PathPieces() []string { return r.pathPieces }

// PathPiece returns segment i, or "" when i is out of range.
func (r *Request) PathPiece(i int) string {
	if i < 0 || i >= len(r.pathPieces) {
		return ""
	}
	return r.pathPieces[i]
}

// Version returns the protocol version, e.g. "HTTP/1.1".
func (r *Request) Version() string { return r.version }

// SetVersion sets the protocol version.
func (r *Request) SetVersion(version string) { r.version = version }

func (r *Request) load(l *lazyValues) *Values {
	if l.loaded {
		return l.values
	}
	l.loaded = true
	if r.conn == nil {
		return l.values
	}
	if l.kind == ArgumentKind {
		r.conn.Enumerate(l.kind, func(key, value string) {
			l.values.Set(key, r.clamp(r.unescape(value)))
		})
	} else {
		r.conn.Enumerate(l.kind, func(key, value string) {
			l.values.Set(key, value)
		})
	}
	return l.values
}

// Headers returns all request headers.
func (r *Request) Headers() *Values { return r.load(&r.headers) }

// Header returns the header value for key, compared case-insensitively.
func (r *Request) Header(key string) string { return r.Headers().Get(key) }

// Footers returns all trailing headers.
func (r *Request) Footers() *Values { return r.load(&r.footers) }

// Footer returns the footer value for key.
func (r *Request) Footer(key string) string { return r.Footers().Get(key) }

// Cookies returns all cookies.
func (r *Request) Cookies() *Values { return r.load(&r.cookies) }

// Cookie returns the cookie value for key.
func (r *Request) Cookie(key string) string { return r.Cookies().Get(key) }

// Args returns all arguments, unescaped and truncated to the content
// size limit. Keys are case-sensitive.
func (r *Request) Args() *Values { return r.load(&r.args) }

// Arg returns the argument value for key.
func (r *Request) Arg(key string) string { return r.Args().Get(key) }

// SetHeader stores a header value.
func (r *Request) SetHeader(key, value string) { r.headers.values.Set(key, value) }

// RemoveHeader deletes a header.
func (r *Request) RemoveHeader(key string) { r.headers.values.Delete(key) }

// SetFooter stores a footer value.
func (r *Request) SetFooter(key, value string) { r.footers.values.Set(key, value) }

// SetCookie stores a cookie value.
func (r *Request) SetCookie(key, value string) { r.cookies.values.Set(key, value) }

// SetArg stores an argument value truncated to the content size limit.
// The value is stored as given, without unescaping.
func (r *Request) SetArg(key, value string) { r.args.values.Set(key, r.clamp(value)) }

// SetHeaders stores every entry of m.
func (r *Request) SetHeaders(m map[string]string) {
	for k, v := range m {
		r.SetHeader(k, v)
	}
}

// SetFooters stores every entry of m.
func (r *Request) SetFooters(m map[string]string) {
	for k, v := range m {
		r.SetFooter(k, v)
	}
}

// SetCookies stores every entry of m.
func (r *Request) SetCookies(m map[string]string) {
	for k, v := range m {
		r.SetCookie(k, v)
	}
}

// SetArgs stores every entry of m, truncating values.
func (r *Request) SetArgs(m map[string]string) {
	for k, v := range m {
		r.SetArg(k, v)
	}
}

// Querystring returns the raw query string without the leading '?'. It is
// taken from the connection when it implements QueryProvider, otherwise
// rebuilt from the arguments in key order.
func (r *Request) Querystring() string {
	if r.querystringLoaded {
		return r.querystring
	}
	r.querystringLoaded = true

	if qp, ok := r.conn.(QueryProvider); ok {
		r.querystring = qp.RawQuery()
		return r.querystring
	}

	var b strings.Builder
	for k, v := range r.Args().All() {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	r.querystring = b.String()
	return r.querystring
}

// Clone returns a copy of r with all materialized state duplicated. The
// connection reference is shared, not duplicated.
func (r *Request) Clone() *Request {
	c := *r
	c.pathPieces = append([]string{}, r.pathPieces...)
	c.headers.values = r.headers.values.Clone()
	c.footers.values = r.footers.values.Clone()
	c.cookies.values = r.cookies.values.Clone()
	c.args.values = r.args.values.Clone()
	c.content = append([]byte(nil), r.content...)
	return &c
}
