package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/signalix/smsverify/internal/config"
	"github.com/signalix/smsverify/internal/db"
	httphandler "github.com/signalix/smsverify/internal/http"
	"github.com/signalix/smsverify/internal/http/handlers"
	"github.com/signalix/smsverify/internal/locale"
	"github.com/signalix/smsverify/internal/logging"
	"github.com/signalix/smsverify/internal/middleware"
	"github.com/signalix/smsverify/internal/provider"
	"github.com/signalix/smsverify/internal/repo"
	"github.com/signalix/smsverify/internal/verification"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification API server",
	RunE:  runServe,
}

// confirmLimitFactor scales the per-number cap on confirm calls relative to RATE_LIMIT_PER_WINDOW.
const confirmLimitFactor = 2

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxOpenConns: cfg.MaxOpenConns, Logger: logger})
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = db.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	deliveryProvider, err := newDeliveryProvider(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}

	store := repo.NewAttemptRepo(database, cfg.AttemptWindow)
	catalog := locale.NewCatalog()
	svc := verification.NewService(store, deliveryProvider, catalog, verification.WithLogger(logger))

	go verification.NewSweeper(store, cfg.SweepInterval, logger).Run(ctx)

	ipLimiter, phoneLimiter := newLimiters(ctx, cfg, rdb, logger)
	verificationHandler := handlers.NewVerificationHandler(svc, catalog, ipLimiter, phoneLimiter, logger)
	router := httphandler.NewRouter(verificationHandler, handlers.NewHealthHandler(database), cfg.TrustProxy)

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "provider", cfg.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func newDeliveryProvider(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (provider.DeliveryProvider, error) {
	switch cfg.Provider {
	case config.ProviderTwilio:
		return provider.NewTwilioVerify(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.ServiceID, cfg.Twilio.BaseURL), nil
	case config.ProviderSNS:
		publisher, err := provider.NewSNSPublisher(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return provider.NewLocal(rdb, provider.NewSNSSender(publisher, logger), cfg.CodeTTL), nil
	case config.ProviderLog:
		logger.Warn("using log delivery provider; codes are written to the log")
		return provider.NewLocal(rdb, provider.NewLogSender(logger), cfg.CodeTTL), nil
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", cfg.Provider)
	}
}

func newLimiters(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (middleware.Limiter, middleware.Limiter) {
	if cfg.RateLimit == 0 {
		return middleware.NoLimit{}, middleware.NoLimit{}
	}
	if rdb != nil {
		return middleware.NewRedisRateLimiter(rdb, cfg.AttemptWindow, cfg.RateLimit, logger),
			middleware.NewRedisRateLimiter(rdb, cfg.AttemptWindow, cfg.RateLimit*confirmLimitFactor, logger)
	}
	return middleware.NewRateLimiter(ctx, cfg.AttemptWindow, cfg.RateLimit),
		middleware.NewRateLimiter(ctx, cfg.AttemptWindow, cfg.RateLimit*confirmLimitFactor)
}
