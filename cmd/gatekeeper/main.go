package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kinshipapp/gatekeeper/pkg/api"
	"github.com/kinshipapp/gatekeeper/pkg/config"
	"github.com/kinshipapp/gatekeeper/pkg/csrf"
	"github.com/kinshipapp/gatekeeper/pkg/httputil"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/middleware"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
	"github.com/kinshipapp/gatekeeper/pkg/ratelimit"
	"github.com/kinshipapp/gatekeeper/pkg/resource"
	"github.com/kinshipapp/gatekeeper/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	redisClient, err := storage.NewRedisClient(storage.RedisConfig{
		URL:     cfg.Stores.RedisURL,
		DB:      cfg.Stores.RedisDB,
		Timeout: cfg.Stores.RedisTimeout,
	})
	if err != nil {
		logger.WithError(err).Error("connecting to redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	documents, err := storage.NewPostgresStore(storage.PostgresConfig{
		URL:      cfg.Stores.PostgresURL,
		MaxConns: cfg.Stores.PostgresMaxConns,
		Timeout:  cfg.Stores.PostgresTimeout,
	})
	if err != nil {
		logger.WithError(err).Error("connecting to postgres")
		os.Exit(1)
	}
	defer documents.Close()

	verifier, err := buildVerifier(cfg)
	if err != nil {
		logger.WithError(err).Error("building identity verifier")
		os.Exit(1)
	}

	gate := identity.NewGate(verifier, documents, logger)
	limiter := ratelimit.NewLimiter(
		ratelimit.NewRedisCounterStore(redisClient, "gatekeeper"), gate, metrics, logger)
	codec := csrf.NewCodec(cfg.CSRF.SigningSecret)
	guard := csrf.NewGuard(codec, gate, cfg.CSRF.TrustedClients, metrics, logger)
	issuer := csrf.NewIssuer(codec, cfg.CSRF.SessionTTL, cfg.CSRF.AuthedTTL, metrics)
	resources := resource.NewController(documents, gate, metrics, logger)
	composer := middleware.NewComposer(gate, limiter, guard, resources, metrics, logger)

	server := api.NewServer(composer, issuer, logger)
	registerEndpoints(server)

	handler := httputil.RequestIDMiddleware(logger)(
		httputil.LoggingMiddleware(
			httputil.RecoveryMiddleware(server.Router())))

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(documents.DB(), redisClient)
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: api.HealthRouter(health, registry),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		healthServer.Shutdown(shutdownCtx)
		return apiServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

// buildVerifier selects the assertion verifier from config: OIDC against a
// hosted provider, or HMAC for self-hosted deployments.
func buildVerifier(cfg *config.Config) (identity.Verifier, error) {
	if cfg.Identity.Mode == "hmac" {
		return identity.NewHMACVerifier(cfg.Identity.HMACSecret), nil
	}
	return identity.NewOIDCVerifier(context.Background(), cfg.Identity.IssuerURL, cfg.Identity.ClientID)
}
