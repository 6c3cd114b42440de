package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/auth/apikey"
	"github.com/rhuss/reqstate/pkg/auth/basic"
	"github.com/rhuss/reqstate/pkg/auth/digest"
	"github.com/rhuss/reqstate/pkg/auth/jwt"
	"github.com/rhuss/reqstate/pkg/auth/noop"
	"github.com/rhuss/reqstate/pkg/config"
	"github.com/rhuss/reqstate/pkg/httpdigest"
	"github.com/rhuss/reqstate/pkg/observability"
	"github.com/rhuss/reqstate/pkg/storage"
	"github.com/rhuss/reqstate/pkg/storage/memory"
	"github.com/rhuss/reqstate/pkg/storage/postgres"
)

func newNonceStore(ctx context.Context, cfg config.DigestConfig) (storage.NonceStore, error) {
	switch cfg.NonceStore {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory", "":
		return memory.New(cfg.MaxNonces), nil
	default:
		return nil, fmt.Errorf("unknown nonce store %q", cfg.NonceStore)
	}
}

// newVerifier builds the Digest verifier shared by the adapter and the
// digest authenticator. Without a configured secret, nonces do not
// survive a restart and are not accepted by other replicas.
func newVerifier(cfg config.DigestConfig, counter httpdigest.NonceCounter) *httpdigest.Verifier {
	opts := []httpdigest.Option{httpdigest.WithNonceCounter(counter)}
	if cfg.Secret != "" {
		opts = append(opts, httpdigest.WithSecret([]byte(cfg.Secret)))
	}
	return httpdigest.NewVerifier(opts...)
}

// buildAuthChain creates the authenticator chain for cfg.Type.
func buildAuthChain(cfg config.AuthConfig, verifier *httpdigest.Verifier) (*auth.AuthChain, error) {
	var authn auth.Authenticator
	switch cfg.Type {
	case "none", "":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}, nil

	case "basic":
		authn = basic.New(cfg.Realm, cfg.Users)

	case "digest":
		alg, err := httpdigest.ParseAlgorithm(cfg.Digest.Algorithm)
		if err != nil {
			return nil, err
		}
		authn = digest.New(digest.Config{
			Realm:        cfg.Realm,
			Users:        cfg.Users,
			NonceTimeout: cfg.Digest.NonceTimeout,
			Algorithm:    alg,
			QOP:          cfg.Digest.QOP,
			Opaque:       cfg.Digest.Opaque,
		}, verifier)

	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, Scopes: k.Scopes},
			})
		}
		authn = apikey.New(cfg.Realm, entries)

	case "jwt":
		a, err := jwt.New(jwt.Config{
			Secret:      []byte(cfg.JWT.Secret),
			JWKSURL:     cfg.JWT.JWKSURL,
			Issuer:      cfg.JWT.Issuer,
			Audience:    cfg.JWT.Audience,
			UserClaim:   cfg.JWT.UserClaim,
			ScopesClaim: cfg.JWT.ScopesClaim,
			Realm:       cfg.Realm,
			CacheTTL:    cfg.JWT.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		authn = a

	default:
		return nil, errors.New("unknown auth type " + cfg.Type)
	}

	return &auth.AuthChain{
		Authenticators:  []auth.Authenticator{authn},
		DefaultDecision: auth.No,
	}, nil
}

// purgeNonces periodically drops nonce counters that can no longer verify
// because their nonce is past timeout. It returns when ctx is done.
func purgeNonces(ctx context.Context, store storage.NonceStore, interval, timeout time.Duration) {
	if interval <= 0 || timeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeOnce(ctx, store, timeout)
		}
	}
}

func purgeOnce(ctx context.Context, store storage.NonceStore, timeout time.Duration) {
	n, err := store.Purge(ctx, time.Now().Add(-timeout))
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("nonce purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		observability.DigestNoncesPurgedTotal.Add(float64(n))
		slog.Debug("purged nonce counters", "count", n)
	}
}
