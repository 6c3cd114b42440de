// Command server runs a reqstate demonstration server: every request is
// turned into lazy request state, authenticated by the configured scheme
// and answered with a diagnostic dump.
//
// Configuration is read from a YAML file and REQSTATE_* environment
// variables, see pkg/config. Useful variables:
//
//	REQSTATE_CONFIG      - Path to the config file
//	REQSTATE_PORT        - Listen port (default: 8080)
//	REQSTATE_AUTH_TYPE   - none, basic, digest, apikey or jwt (default: none)
//	REQSTATE_USERS       - JSON object of username -> password
//	REQSTATE_NONCE_STORE - memory or postgres (default: memory)
//	REQSTATE_DEBUG       - Debug categories, e.g. "auth,request"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/reqstate/pkg/auth"
	"github.com/rhuss/reqstate/pkg/config"
	"github.com/rhuss/reqstate/pkg/debug"
	"github.com/rhuss/reqstate/pkg/httpdigest"
	"github.com/rhuss/reqstate/pkg/storage"
	"github.com/rhuss/reqstate/pkg/transport"
	transporthttp "github.com/rhuss/reqstate/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newNonceStore(ctx, cfg.Auth.Digest)
	if err != nil {
		return fmt.Errorf("creating nonce store: %w", err)
	}
	defer store.Close()

	verifier := newVerifier(cfg.Auth.Digest, store)

	chain, err := buildAuthChain(cfg.Auth, verifier)
	if err != nil {
		return fmt.Errorf("creating authenticators: %w", err)
	}

	var limiter auth.FailureLimiter
	if cfg.Auth.FailureLimit.MaxFailures > 0 {
		limiter = auth.NewInProcessLimiter(cfg.Auth.FailureLimit.MaxFailures, cfg.Auth.FailureLimit.Window)
	}

	adapter := newAdapter(cfg, verifier, chain, limiter, store)

	srv := transporthttp.NewServer(adapter,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	slog.Info("reqstate configured",
		"auth", cfg.Auth.Type,
		"realm", cfg.Auth.Realm,
		"nonce_store", cfg.Auth.Digest.NonceStore,
		"max_body_size", cfg.Server.MaxBodySize,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		purgeNonces(gctx, store, cfg.Auth.Digest.PurgeInterval, cfg.Auth.Digest.NonceTimeout)
		return nil
	})
	return g.Wait()
}

// newAdapter registers the request handlers and the health and metrics
// endpoints.
func newAdapter(cfg *config.Config, verifier *httpdigest.Verifier, chain *auth.AuthChain, limiter auth.FailureLimiter, store storage.NonceStore) *transporthttp.Adapter {
	acfg := transporthttp.DefaultConfig()
	acfg.MaxBodySize = cfg.Server.MaxBodySize
	acfg.Verifier = verifier

	adapter := transporthttp.NewAdapter(acfg,
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(nil),
		auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints),
	)

	adapter.HandleFunc("/", dumpHandler)
	adapter.HandleFunc("GET /whoami", whoamiHandler)

	adapter.HandleHTTP("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}))
	adapter.HandleHTTP("GET /readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.HealthCheck(ctx); err != nil {
			transport.WriteError(w, http.StatusServiceUnavailable, transport.ErrorTypeServerError, "nonce store unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}))
	if cfg.Observability.Metrics.Enabled {
		adapter.HandleHTTP("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	return adapter
}
