// Package httpdigest implements the server side of HTTP Digest access
// authentication (RFC 2617, with the RFC 7616 SHA-256 algorithms).
//
// It parses Authorization header parameters, issues time-stamped nonces
// signed with a per-process secret, and verifies request digests. The
// verifier never returns errors for client input: every outcome is a
// Result whose Outcome tells the caller whether to reject the request or
// re-challenge the client with a fresh nonce.
package httpdigest

import (
	"errors"
	"strconv"
	"strings"
)

// Quality of protection values.
const (
	QOPAuth    = "auth"
	QOPAuthInt = "auth-int"
)

// Sentinel errors returned by ParseParams.
var (
	ErrNotDigest            = errors.New("authorization scheme is not Digest")
	ErrSyntax               = errors.New("malformed digest parameter list")
	ErrMissingParam         = errors.New("missing required digest parameter")
	ErrUnsupportedQOP       = errors.New("unsupported qop")
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")
	ErrBadNonceCount        = errors.New("malformed nonce count")
)

// Params holds the parameters of a Digest Authorization header.
type Params struct {
	Username  string
	Realm     string
	Nonce     string
	URI       string
	QOP       string
	NC        string
	CNonce    string
	Response  string
	Opaque    string
	Algorithm Algorithm
}

// ParseParams parses an Authorization header value of the Digest scheme.
// Parameter names are case-insensitive; values may be tokens or quoted
// strings with backslash escapes.
func ParseParams(header string) (Params, error) {
	const prefix = "Digest "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return Params{}, ErrNotDigest
	}

	kv, err := parseList(header[len(prefix):])
	if err != nil {
		return Params{}, err
	}

	alg, err := ParseAlgorithm(kv["algorithm"])
	if err != nil {
		return Params{}, err
	}

	p := Params{
		Username:  kv["username"],
		Realm:     kv["realm"],
		Nonce:     kv["nonce"],
		URI:       kv["uri"],
		QOP:       kv["qop"],
		NC:        kv["nc"],
		CNonce:    kv["cnonce"],
		Response:  kv["response"],
		Opaque:    kv["opaque"],
		Algorithm: alg,
	}

	if err := p.validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Username extracts only the username parameter from a Digest header.
// It returns "" when the header is not a well-formed Digest header.
func Username(header string) string {
	const prefix = "Digest "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	kv, err := parseList(header[len(prefix):])
	if err != nil {
		return ""
	}
	return kv["username"]
}

func (p Params) validate() error {
	for _, v := range []string{p.Username, p.Realm, p.Nonce, p.URI, p.Response} {
		if v == "" {
			return ErrMissingParam
		}
	}

	switch p.QOP {
	case "":
		return nil
	case QOPAuth, QOPAuthInt:
	default:
		return ErrUnsupportedQOP
	}

	if p.NC == "" || p.CNonce == "" {
		return ErrMissingParam
	}
	if _, err := p.NonceCount(); err != nil {
		return err
	}
	return nil
}

// NonceCount returns the nc parameter as a number.
func (p Params) NonceCount() (uint64, error) {
	if p.NC == "" || len(p.NC) > 16 {
		return 0, ErrBadNonceCount
	}
	n, err := strconv.ParseUint(p.NC, 16, 64)
	if err != nil {
		return 0, ErrBadNonceCount
	}
	return n, nil
}

// String renders p as an Authorization header value. Clients and tests
// use it to build credentials.
func (p Params) String() string {
	var b strings.Builder
	b.WriteString("Digest ")
	writeParam(&b, "username", p.Username, true)
	writeParam(&b, "realm", p.Realm, true)
	writeParam(&b, "nonce", p.Nonce, true)
	writeParam(&b, "uri", p.URI, true)
	if p.Algorithm != "" {
		writeParam(&b, "algorithm", string(p.Algorithm), false)
	}
	if p.QOP != "" {
		writeParam(&b, "qop", p.QOP, false)
		writeParam(&b, "nc", p.NC, false)
		writeParam(&b, "cnonce", p.CNonce, true)
	}
	writeParam(&b, "response", p.Response, true)
	if p.Opaque != "" {
		writeParam(&b, "opaque", p.Opaque, true)
	}
	return b.String()
}

func writeParam(b *strings.Builder, key, value string, quoted bool) {
	if b.Len() > len("Digest ") {
		b.WriteString(", ")
	}
	b.WriteString(key)
	b.WriteByte('=')
	if quoted {
		b.WriteString(Quote(value))
	} else {
		b.WriteString(value)
	}
}

// Quote renders s as an RFC 7230 quoted-string.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// parseList parses a comma separated auth-param list. Duplicate names are
// rejected.
func parseList(s string) (map[string]string, error) {
	out := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return out, nil
		}

		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, ErrSyntax
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		if key == "" || strings.ContainsAny(key, " \t\",") {
			return nil, ErrSyntax
		}
		s = strings.TrimLeft(s[eq+1:], " \t")

		var val string
		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			closed := false
			i := 1
			for ; i < len(s); i++ {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					i++
					b.WriteByte(s[i])
					continue
				}
				if c == '"' {
					closed = true
					break
				}
				b.WriteByte(c)
			}
			if !closed {
				return nil, ErrSyntax
			}
			val = b.String()
			s = s[i+1:]
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				end = len(s)
			}
			val = strings.TrimSpace(s[:end])
			if strings.ContainsAny(val, " \t\"") {
				return nil, ErrSyntax
			}
			s = s[end:]
		}

		s = strings.TrimLeft(s, " \t")
		if s != "" && s[0] != ',' {
			return nil, ErrSyntax
		}
		if _, dup := out[key]; dup {
			return nil, ErrSyntax
		}
		out[key] = val
	}
}
