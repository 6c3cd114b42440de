package httpdigest

import "strings"

// Challenge is the content of a Digest WWW-Authenticate header.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Algorithm Algorithm
	QOP       string // "" omits the qop directive
	Stale     bool
}

// String renders the challenge as a WWW-Authenticate value.
func (c Challenge) String() string {
	var b strings.Builder
	b.WriteString(`Digest realm=`)
	b.WriteString(Quote(c.Realm))
	if c.QOP != "" {
		b.WriteString(`, qop=`)
		b.WriteString(Quote(c.QOP))
	}
	if c.Algorithm != "" {
		b.WriteString(`, algorithm=`)
		b.WriteString(string(c.Algorithm))
	}
	b.WriteString(`, nonce=`)
	b.WriteString(Quote(c.Nonce))
	if c.Opaque != "" {
		b.WriteString(`, opaque=`)
		b.WriteString(Quote(c.Opaque))
	}
	if c.Stale {
		b.WriteString(`, stale=true`)
	}
	return b.String()
}

// ParseChallenge parses a Digest WWW-Authenticate value. It is the client
// side counterpart of Challenge.String.
func ParseChallenge(header string) (Challenge, error) {
	const prefix = "Digest "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return Challenge{}, ErrNotDigest
	}
	kv, err := parseList(header[len(prefix):])
	if err != nil {
		return Challenge{}, err
	}
	alg, err := ParseAlgorithm(kv["algorithm"])
	if err != nil {
		return Challenge{}, err
	}
	if kv["nonce"] == "" || kv["realm"] == "" {
		return Challenge{}, ErrMissingParam
	}
	return Challenge{
		Realm:     kv["realm"],
		Nonce:     kv["nonce"],
		Opaque:    kv["opaque"],
		Algorithm: alg,
		QOP:       kv["qop"],
		Stale:     strings.EqualFold(kv["stale"], "true"),
	}, nil
}
