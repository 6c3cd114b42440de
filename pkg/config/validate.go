package config

import (
	"errors"
	"fmt"

	"github.com/rhuss/reqstate/pkg/httpdigest"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}

	switch c.Auth.Type {
	case "none", "apikey":
		// valid
	case "basic", "digest":
		if len(c.Auth.Users) == 0 {
			errs = append(errs, fmt.Errorf("auth.users is required when auth.type is %q", c.Auth.Type))
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"basic\", \"digest\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys is required when auth.type is \"apikey\""))
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].key is empty", i))
		}
		if k.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
		}
	}

	d := c.Auth.Digest
	if _, err := httpdigest.ParseAlgorithm(d.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("auth.digest.algorithm: %w", err))
	}
	switch d.QOP {
	case "", httpdigest.QOPAuth, httpdigest.QOPAuthInt, httpdigest.QOPAuth + "," + httpdigest.QOPAuthInt:
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.digest.qop must be \"auth\", \"auth-int\", or \"auth,auth-int\", got %q", d.QOP))
	}
	switch d.NonceStore {
	case "memory":
		if d.MaxNonces <= 0 {
			errs = append(errs, fmt.Errorf("auth.digest.max_nonces must be > 0, got %d", d.MaxNonces))
		}
	case "postgres":
		if d.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("auth.digest.postgres.dsn or auth.digest.postgres.dsn_file is required when auth.digest.nonce_store is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.digest.nonce_store must be \"memory\" or \"postgres\", got %q", d.NonceStore))
	}

	if c.Auth.FailureLimit.MaxFailures > 0 && c.Auth.FailureLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("auth.failure_limit.window must be > 0 when max_failures is set"))
	}

	switch c.Logging.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
