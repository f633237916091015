// Package main is the entry point for the erasure-api server.
// Tenant users authenticate with HS256 JWTs; connector agents use their own
// bearer tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/erasure-api/internal/auth"
	"github.com/jmylchreest/erasure-api/internal/config"
	"github.com/jmylchreest/erasure-api/internal/database"
	"github.com/jmylchreest/erasure-api/internal/http/handlers"
	"github.com/jmylchreest/erasure-api/internal/http/mw"
	"github.com/jmylchreest/erasure-api/internal/http/routes"
	"github.com/jmylchreest/erasure-api/internal/logging"
	"github.com/jmylchreest/erasure-api/internal/metrics"
	"github.com/jmylchreest/erasure-api/internal/repository"
	"github.com/jmylchreest/erasure-api/internal/service"
	"github.com/jmylchreest/erasure-api/internal/version"
	"github.com/jmylchreest/erasure-api/internal/worker"
)

func main() {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.SetDefault(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	v := version.Get()
	logger.Info("starting erasure-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	db, err := database.New(cfg.DatabaseURL, database.Options{
		TursoURL:       cfg.TursoURL,
		TursoAuthToken: cfg.TursoAuthToken,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(context.Background(), db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if schemaVersion, err := database.SchemaVersion(context.Background(), db); err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	metrics.Register()

	repos := repository.NewRepositories(db)

	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set - tenant requests will be rejected")
	}
	verifier := auth.NewVerifier(cfg.JWTSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deliveryWorker *worker.Worker
	if cfg.WorkerEnabled {
		deliveryWorker = worker.New(repos.CascadeJob, services.Delivery, worker.Config{
			PollInterval: cfg.WorkerPollInterval,
			Concurrency:  cfg.WorkerConcurrency,
			StaleAfter:   cfg.WorkerStaleAfter,
		}, logger)
		deliveryWorker.Start(ctx)
	} else {
		logger.Info("cascade delivery worker disabled")
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.CorrelationID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.APIVersion())

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.CorrelationHeader},
		ExposedHeaders:   []string{"Content-Disposition", "X-Archive-Key", "X-Archive-URL", mw.CorrelationHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Agent event batches are the largest bodies we accept
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	router.Use(mw.RateLimitByIP(300))
	router.Use(mw.RateLimitPrefixByIP("/api/agent/", 120))
	router.Use(mw.RateLimitPrefixByIP("/api/webhooks/", 60))
	router.Use(middleware.Throttle(100))

	router.Handle("/metrics", promhttp.Handler())

	// Stripe needs the untouched body to verify its signature, so this stays off Huma
	stripeWebhook := handlers.NewStripeWebhookHandler(services.Ledger, logger)
	router.Post("/api/webhooks/stripe", stripeWebhook.HandleWebhook)

	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, mw.HumaAuthConfig{
		Verifier:   verifier,
		Connectors: services.Agent,
	}))
	routes.Register(api, routes.NewHandlers(services, db))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.WorkerShutdownGracePeriod)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}

		// In-flight deliveries finish before the process exits
		if deliveryWorker != nil {
			done := make(chan struct{})
			go func() {
				deliveryWorker.Stop()
				close(done)
			}()
			select {
			case <-done:
			case <-shutdownCtx.Done():
				logger.Warn("worker did not stop within grace period")
			}
		}
		cancel()
	}()

	logger.Info("starting server",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"environment", cfg.Environment,
		"vault", cfg.VaultEnabled(),
		"stripe", cfg.StripeEnabled(),
		"storage", services.Storage.IsEnabled(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped")
}
