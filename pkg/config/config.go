// Package config provides unified configuration for the reqstate server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (REQSTATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the reqstate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB, <= 0 is unbounded
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type  string            `yaml:"type"`  // "none", "basic", "digest", "apikey", "jwt"; default: "none"
	Realm string            `yaml:"realm"` // default: "reqstate"
	Users map[string]string `yaml:"users"` // username -> password for basic and digest

	// UsersFile points to a YAML map of username -> password, merged
	// under Users.
	UsersFile string `yaml:"users_file"`

	Digest       DigestConfig       `yaml:"digest"`
	APIKeys      []APIKeyConfig     `yaml:"api_keys"`
	JWT          JWTConfig          `yaml:"jwt"`
	FailureLimit FailureLimitConfig `yaml:"failure_limit"`
}

// DigestConfig holds Digest authentication settings.
type DigestConfig struct {
	NonceTimeout time.Duration `yaml:"nonce_timeout"` // default: 5m
	Secret       string        `yaml:"secret"`        // random per process when empty
	SecretFile   string        `yaml:"secret_file"`   // _file variant for secret
	Algorithm    string        `yaml:"algorithm"`     // MD5, MD5-sess, SHA-256, SHA-256-sess; default: MD5
	QOP          string        `yaml:"qop"`           // default: "auth"
	Opaque       string        `yaml:"opaque"`

	NonceStore    string         `yaml:"nonce_store"`    // "memory" or "postgres", default: "memory"
	MaxNonces     int            `yaml:"max_nonces"`     // memory store bound, default: 10000
	PurgeInterval time.Duration  `yaml:"purge_interval"` // default: 1m
	Postgres      PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string   `yaml:"key" json:"key"`
	KeyFile string   `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string   `yaml:"subject" json:"subject"`
	Scopes  []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig holds bearer JWT settings. At least one of Secret and
// JWKSURL is required for type=jwt.
type JWTConfig struct {
	Secret      string        `yaml:"secret"`
	SecretFile  string        `yaml:"secret_file"` // _file variant for secret
	JWKSURL     string        `yaml:"jwks_url"`
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	UserClaim   string        `yaml:"user_claim"`   // default: "sub"
	ScopesClaim string        `yaml:"scopes_claim"` // default: "scope"
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // default: 1h
}

// FailureLimitConfig throttles peers after repeated failed attempts.
type FailureLimitConfig struct {
	MaxFailures int           `yaml:"max_failures"` // default: 10, 0 disables
	Window      time.Duration `yaml:"window"`       // default: 1m
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log output settings. REQSTATE_DEBUG and
// REQSTATE_LOG_LEVEL take precedence.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Auth: AuthConfig{
			Type:  "none",
			Realm: "reqstate",
			Digest: DigestConfig{
				NonceTimeout:  5 * time.Minute,
				Algorithm:     "MD5",
				QOP:           "auth",
				NonceStore:    "memory",
				MaxNonces:     10000,
				PurgeInterval: time.Minute,
				Postgres: PostgresConfig{
					MaxConns: 10,
				},
			},
			FailureLimit: FailureLimitConfig{
				MaxFailures: 10,
				Window:      time.Minute,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
