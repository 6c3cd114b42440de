package httpdigest

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/reqstate/pkg/debug"
)

// DefaultNonceTimeout is used when Input.Timeout is zero.
const DefaultNonceTimeout = 5 * time.Minute

const (
	// nonceTimeLen is the number of hex digits carrying the issuance time.
	nonceTimeLen = 16

	// nonceRandLen is the number of hex digits of per-nonce randomness.
	nonceRandLen = 32

	// nonceSigLen is the hex HMAC-SHA256 signature.
	nonceSigLen = 2 * sha256.Size

	nonceLen = nonceSigLen + nonceRandLen + nonceTimeLen
)

// Outcome classifies a verification attempt.
type Outcome int

const (
	// Success means the presented digest matches.
	Success Outcome = iota

	// InvalidCredentials means the header was well formed but the realm,
	// uri or digest did not match.
	InvalidCredentials

	// NonceExpired means the nonce is past its timeout, was not issued by
	// this verifier, or its nonce count was replayed. The caller should
	// send a fresh challenge with stale=true.
	NonceExpired

	// Malformed means the header could not be parsed.
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case InvalidCredentials:
		return "invalid_credentials"
	case NonceExpired:
		return "nonce_expired"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result carries the verdict of Verify.
type Result struct {
	Outcome  Outcome
	Username string // parsed username, set whenever the header parsed
}

// OK reports whether the credentials were accepted.
func (r Result) OK() bool { return r.Outcome == Success }

// ReloadNonce reports whether the client must be re-challenged with a
// fresh nonce.
func (r Result) ReloadNonce() bool { return r.Outcome == NonceExpired }

// NonceCounter tracks the highest nonce count accepted per nonce so a
// captured request cannot be replayed.
type NonceCounter interface {
	// Advance records nc for nonce and reports whether nc is strictly
	// greater than every count previously recorded for that nonce.
	Advance(ctx context.Context, nonce string, nc uint64) (bool, error)
}

// Input describes one verification attempt.
type Input struct {
	Header   string // Authorization header value
	Method   string
	Path     string // decoded request path
	Query    string // raw query string without '?'
	Body     []byte // entity body, hashed for qop=auth-int
	Realm    string
	Password string

	// Timeout bounds the nonce age. Zero selects DefaultNonceTimeout,
	// a negative value disables the age check.
	Timeout time.Duration
}

// Verifier issues and checks nonces and verifies digests. It is safe for
// concurrent use.
type Verifier struct {
	secret  []byte
	now     func() time.Time
	counter NonceCounter
	logger  *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithSecret sets the nonce signing key. Verifiers that share a secret
// accept each other's nonces.
func WithSecret(secret []byte) Option {
	return func(v *Verifier) { v.secret = append([]byte(nil), secret...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithNonceCounter enables replay detection.
func WithNonceCounter(c NonceCounter) Option {
	return func(v *Verifier) { v.counter = c }
}

// WithLogger sets the logger used for infrastructure failures.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier creates a Verifier. Without WithSecret a random 32-byte
// secret is generated, so nonces do not survive a restart.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if len(v.secret) == 0 {
		v.secret = make([]byte, 32)
		rand.Read(v.secret)
	}
	return v
}

var defaultVerifier = sync.OnceValue(func() *Verifier { return NewVerifier() })

// Default returns the process-wide Verifier with a random secret and no
// replay tracking.
func Default() *Verifier {
	return defaultVerifier()
}

// NewNonce issues a nonce for realm stamped with the current time. Every
// call returns a distinct nonce, so clients challenged in the same second
// keep separate nonce counts.
func (v *Verifier) NewNonce(realm string) string {
	ts := strconv.FormatUint(uint64(v.now().Unix()), 16)
	ts = strings.Repeat("0", nonceTimeLen-len(ts)) + ts
	salt := make([]byte, nonceRandLen/2)
	rand.Read(salt)
	rnd := hex.EncodeToString(salt)
	return v.sign(ts, rnd, realm) + rnd + ts
}

func (v *Verifier) sign(ts, rnd, realm string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(ts))
	mac.Write([]byte{':'})
	mac.Write([]byte(rnd))
	mac.Write([]byte{':'})
	mac.Write([]byte(realm))
	return hex.EncodeToString(mac.Sum(nil))
}

// checkNonce validates structure, signature and age of nonce.
func (v *Verifier) checkNonce(nonce, realm string, timeout time.Duration) Outcome {
	if len(nonce) != nonceLen {
		return Malformed
	}
	sig := nonce[:nonceSigLen]
	rnd := nonce[nonceSigLen : nonceSigLen+nonceRandLen]
	ts := nonce[nonceSigLen+nonceRandLen:]
	issued, err := strconv.ParseUint(ts, 16, 64)
	if err != nil {
		return Malformed
	}
	if _, err := hex.DecodeString(sig); err != nil {
		return Malformed
	}
	if _, err := hex.DecodeString(rnd); err != nil {
		return Malformed
	}

	if !hmac.Equal([]byte(sig), []byte(v.sign(ts, rnd, realm))) {
		return NonceExpired
	}

	if timeout == 0 {
		timeout = DefaultNonceTimeout
	}
	if timeout < 0 {
		return Success
	}
	now := v.now().Unix()
	if int64(issued) > now || time.Duration(now-int64(issued))*time.Second > timeout {
		return NonceExpired
	}
	return Success
}

// Verify checks the Digest credentials in in.Header.
func (v *Verifier) Verify(ctx context.Context, in Input) Result {
	p, err := ParseParams(in.Header)
	if err != nil {
		debug.Log("auth", "digest header rejected", "error", err)
		return Result{Outcome: Malformed, Username: Username(in.Header)}
	}
	res := Result{Username: p.Username}

	if p.Realm != in.Realm {
		res.Outcome = InvalidCredentials
		return res
	}

	if o := v.checkNonce(p.Nonce, in.Realm, in.Timeout); o != Success {
		debug.Log("auth", "digest nonce rejected", "user", p.Username, "outcome", o.String())
		res.Outcome = o
		return res
	}

	u, err := url.Parse(p.URI)
	if err != nil {
		res.Outcome = Malformed
		return res
	}
	if normalizePath(u.Path) != normalizePath(in.Path) || !sameQuery(u.RawQuery, in.Query) {
		debug.Log("auth", "digest uri does not match request", "uri", p.URI, "path", in.Path, "query", in.Query)
		res.Outcome = InvalidCredentials
		return res
	}

	expected := ExpectedResponse(p, in.Method, in.Password, in.Body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(p.Response))) != 1 {
		res.Outcome = InvalidCredentials
		return res
	}

	if p.QOP != "" && v.counter != nil {
		nc, _ := p.NonceCount()
		fresh, err := v.counter.Advance(ctx, p.Nonce, nc)
		if err != nil {
			v.logger.Warn("nonce counter unavailable", "user", p.Username, "error", err)
			res.Outcome = InvalidCredentials
			return res
		}
		if !fresh {
			debug.Log("auth", "digest nonce count replayed", "user", p.Username, "nc", p.NC)
			res.Outcome = NonceExpired
			return res
		}
	}

	res.Outcome = Success
	return res
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// sameQuery compares two raw query strings as decoded argument lists, so
// equivalent percent-encodings match while any added, removed or changed
// argument does not.
func sameQuery(a, b string) bool {
	if a == b {
		return true
	}
	qa, errA := url.ParseQuery(a)
	qb, errB := url.ParseQuery(b)
	if errA != nil || errB != nil || len(qa) != len(qb) {
		return false
	}
	for k, va := range qa {
		if !slices.Equal(va, qb[k]) {
			return false
		}
	}
	return true
}
