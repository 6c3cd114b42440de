package httpdigest

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// Algorithm names the hash construction of a digest exchange.
type Algorithm string

// Supported algorithms. MD5 is the RFC 2617 default.
const (
	MD5        Algorithm = "MD5"
	MD5Sess    Algorithm = "MD5-sess"
	SHA256     Algorithm = "SHA-256"
	SHA256Sess Algorithm = "SHA-256-sess"
)

// ParseAlgorithm matches s case-insensitively against the supported
// algorithms. An empty string selects MD5.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return MD5, nil
	}
	for _, a := range []Algorithm{MD5, MD5Sess, SHA256, SHA256Sess} {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return "", ErrUnsupportedAlgorithm
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA256, SHA256Sess:
		return sha256.New()
	default:
		return md5.New()
	}
}

func (a Algorithm) session() bool {
	return a == MD5Sess || a == SHA256Sess
}

// sum hashes the colon-joined parts and returns lower-case hex.
func (a Algorithm) sum(parts ...string) string {
	h := a.newHash()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{':'})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (a Algorithm) sumBytes(b []byte) string {
	h := a.newHash()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

// ExpectedResponse computes the request-digest that a client holding
// password sends for the given parameters, method and entity body. The
// body is only hashed for qop=auth-int.
func ExpectedResponse(p Params, method, password string, body []byte) string {
	alg := p.Algorithm
	if alg == "" {
		alg = MD5
	}

	ha1 := alg.sum(p.Username, p.Realm, password)
	if alg.session() {
		ha1 = alg.sum(ha1, p.Nonce, p.CNonce)
	}

	var ha2 string
	if p.QOP == QOPAuthInt {
		ha2 = alg.sum(method, p.URI, alg.sumBytes(body))
	} else {
		ha2 = alg.sum(method, p.URI)
	}

	if p.QOP == "" {
		return alg.sum(ha1, p.Nonce, ha2)
	}
	return alg.sum(ha1, p.Nonce, p.NC, p.CNonce, p.QOP, ha2)
}
