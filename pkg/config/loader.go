package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/reqstate/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, REQSTATE_CONFIG env, ./config.yaml, /etc/reqstate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. REQSTATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/reqstate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("REQSTATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/reqstate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps REQSTATE_* environment variables to config
// fields. Unparseable numeric or duration values are reported.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"REQSTATE_AUTH_TYPE":          &cfg.Auth.Type,
		"REQSTATE_REALM":              &cfg.Auth.Realm,
		"REQSTATE_DIGEST_SECRET":      &cfg.Auth.Digest.Secret,
		"REQSTATE_DIGEST_ALGORITHM":   &cfg.Auth.Digest.Algorithm,
		"REQSTATE_NONCE_STORE":        &cfg.Auth.Digest.NonceStore,
		"REQSTATE_POSTGRES_DSN":       &cfg.Auth.Digest.Postgres.DSN,
		"REQSTATE_JWT_SECRET":         &cfg.Auth.JWT.Secret,
		"REQSTATE_JWT_JWKS_URL":       &cfg.Auth.JWT.JWKSURL,
		"REQSTATE_JWT_ISSUER":         &cfg.Auth.JWT.Issuer,
		"REQSTATE_JWT_AUDIENCE":       &cfg.Auth.JWT.Audience,
		"REQSTATE_LOG_FORMAT":         &cfg.Logging.Format,
		"REQSTATE_METRICS_PATH":       &cfg.Observability.Metrics.Path,
		"REQSTATE_DIGEST_QOP":         &cfg.Auth.Digest.QOP,
		"REQSTATE_DIGEST_OPAQUE":      &cfg.Auth.Digest.Opaque,
		"REQSTATE_USERS_FILE":         &cfg.Auth.UsersFile,
		"REQSTATE_POSTGRES_DSN_FILE":  &cfg.Auth.Digest.Postgres.DSNFile,
		"REQSTATE_DIGEST_SECRET_FILE": &cfg.Auth.Digest.SecretFile,
	}
	for env, field := range strs {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	var errs []string
	if v := os.Getenv("REQSTATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			errs = append(errs, "REQSTATE_PORT: "+err.Error())
		}
	}
	if v := os.Getenv("REQSTATE_MAX_BODY_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxBodySize = size
		} else {
			errs = append(errs, "REQSTATE_MAX_BODY_SIZE: "+err.Error())
		}
	}
	if v := os.Getenv("REQSTATE_MAX_NONCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.Digest.MaxNonces = n
		} else {
			errs = append(errs, "REQSTATE_MAX_NONCES: "+err.Error())
		}
	}
	if v := os.Getenv("REQSTATE_NONCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.Digest.NonceTimeout = d
		} else {
			errs = append(errs, "REQSTATE_NONCE_TIMEOUT: "+err.Error())
		}
	}
	if v := os.Getenv("REQSTATE_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Metrics.Enabled = b
		} else {
			errs = append(errs, "REQSTATE_METRICS_ENABLED: "+err.Error())
		}
	}

	// REQSTATE_USERS: JSON object of username -> password.
	if v := os.Getenv("REQSTATE_USERS"); v != "" {
		var users map[string]string
		if err := json.Unmarshal([]byte(v), &users); err != nil {
			errs = append(errs, "REQSTATE_USERS: "+err.Error())
		} else if len(users) > 0 {
			cfg.Auth.Users = users
		}
	}

	// REQSTATE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("REQSTATE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			errs = append(errs, "REQSTATE_API_KEYS: "+err.Error())
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"auth.digest.secret_file", cfg.Auth.Digest.SecretFile, &cfg.Auth.Digest.Secret},
		{"auth.digest.postgres.dsn_file", cfg.Auth.Digest.Postgres.DSNFile, &cfg.Auth.Digest.Postgres.DSN},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	// auth.users_file entries never replace inline users.
	if cfg.Auth.UsersFile != "" {
		data, err := os.ReadFile(cfg.Auth.UsersFile)
		if err != nil {
			return fmt.Errorf("auth.users_file: %w", err)
		}
		var users map[string]string
		if err := yaml.Unmarshal(data, &users); err != nil {
			return fmt.Errorf("auth.users_file: %w", err)
		}
		if cfg.Auth.Users == nil {
			cfg.Auth.Users = make(map[string]string, len(users))
		}
		for u, p := range users {
			if _, ok := cfg.Auth.Users[u]; !ok {
				cfg.Auth.Users[u] = p
			}
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
