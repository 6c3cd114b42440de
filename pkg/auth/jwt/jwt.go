// Package jwt provides a bearer token authenticator for JSON Web Tokens.
//
// Tokens are verified either with a shared HMAC secret (HS256/384/512) or
// against the RSA keys of a JWKS endpoint (RS256/384/512), or both. The
// issuer, audience, subject claim and scopes claim are configurable.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/debug"
	"github.com/rhuss/reqstate/pkg/httpdigest"
	"github.com/rhuss/reqstate/pkg/request"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret enables HMAC-signed tokens.
	Secret []byte

	// JWKSURL enables RSA-signed tokens verified against a key set.
	JWKSURL string

	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string

	// ScopesClaim holds the authorization scopes, as a space-separated
	// string or a JSON array. Default: "scope".
	ScopesClaim string

	// Realm is announced in the Bearer challenge.
	Realm string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// Fetcher retrieves the JWKS document. Defaults to an HTTP GET with
	// http.DefaultClient.
	Fetcher Fetcher
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.Fetcher == nil {
		c.Fetcher = HTTPFetcher(nil)
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	keys   *jwksCache // nil without JWKSURL
	parser *jwtlib.Parser
}

var (
	_ auth.Authenticator = (*Authenticator)(nil)
	_ auth.Challenger    = (*Authenticator)(nil)
)

// New creates a JWT authenticator. At least one of Secret and JWKSURL
// must be set.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 && cfg.JWKSURL == "" {
		return nil, errors.New("jwt: either a secret or a JWKS URL is required")
	}
	cfg.applyDefaults()

	var methods []string
	if len(cfg.Secret) > 0 {
		methods = append(methods, "HS256", "HS384", "HS512")
	}
	opts := []jwtlib.ParserOption{jwtlib.WithExpirationRequired()}
	a := &Authenticator{config: cfg}
	if cfg.JWKSURL != "" {
		methods = append(methods, "RS256", "RS384", "RS512")
		a.keys = newJWKSCache(cfg.JWKSURL, cfg.Fetcher, cfg.CacheTTL)
	}
	opts = append(opts, jwtlib.WithValidMethods(methods))
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}
	a.parser = jwtlib.NewParser(opts...)
	return a, nil
}

// Authenticate validates the bearer token of req.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad signature, etc.)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(ctx context.Context, req *request.Request) auth.AuthResult {
	tokenStr, ok := auth.BearerToken(req.Header("Authorization"))
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrMalformedCredentials, Scheme: "jwt"}
	}

	token, err := a.parser.Parse(tokenStr, func(t *jwtlib.Token) (any, error) {
		return a.key(ctx, t)
	})
	if err != nil {
		debug.Log("auth", "JWT validation failed", "error", err)
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("%w: %w", auth.ErrInvalidCredentials, err),
			Scheme:   "jwt",
		}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidCredentials, Scheme: "jwt"}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("%w: missing %q claim", auth.ErrInvalidCredentials, a.config.UserClaim),
			Scheme:   "jwt",
		}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: subject,
			Scheme:  "jwt",
			Scopes:  extractScopes(claims, a.config.ScopesClaim),
		},
		Scheme: "jwt",
	}
}

// key selects the verification key for t by its signing method.
func (a *Authenticator) key(ctx context.Context, t *jwtlib.Token) (any, error) {
	switch t.Method.(type) {
	case *jwtlib.SigningMethodHMAC:
		if len(a.config.Secret) == 0 {
			return nil, errors.New("HMAC tokens not accepted")
		}
		return a.config.Secret, nil
	case *jwtlib.SigningMethodRSA:
		if a.keys == nil {
			return nil, errors.New("RSA tokens not accepted")
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return a.keys.getKey(ctx, kid)
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
}

// Challenge implements auth.Challenger.
func (a *Authenticator) Challenge(_ *request.Request, _ bool) string {
	if a.config.Realm == "" {
		return "Bearer"
	}
	return "Bearer realm=" + httpdigest.Quote(a.config.Realm)
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes reads a space-separated string or a JSON array claim.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
