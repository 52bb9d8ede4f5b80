package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/oraculo/internal"
	"github.com/DukeRupert/oraculo/internal/ai"
	"github.com/DukeRupert/oraculo/internal/ai/anthropic"
	"github.com/DukeRupert/oraculo/internal/ai/gateway"
	"github.com/DukeRupert/oraculo/internal/ai/mock"
	"github.com/DukeRupert/oraculo/internal/auth"
	"github.com/DukeRupert/oraculo/internal/billing"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/handler"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/DukeRupert/oraculo/internal/middleware"
	"github.com/DukeRupert/oraculo/internal/repository"
	"github.com/DukeRupert/oraculo/internal/service"
	"github.com/DukeRupert/oraculo/internal/session"
	"github.com/DukeRupert/oraculo/internal/storage"
)

const (
	sessionSweepInterval   = time.Minute
	rateLimitSweepInterval = 5 * time.Minute
	rateLimitIdle          = 30 * time.Minute
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	if err := domain.ValidateCatalog(); err != nil {
		return fmt.Errorf("spread catalog invalid: %w", err)
	}

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	repo := repository.New(db)

	// ==========================================================================
	// Providers
	// ==========================================================================

	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}
	interpreter := ai.NewClient(provider, ai.ClientConfig{
		Timeout:  cfg.AIRequestTimeout,
		Language: cfg.ReadingLanguage,
	}, logger)
	logger.Info("AI provider ready", "provider", provider.Name(), "language", cfg.ReadingLanguage)

	store, err := storage.New(cfg.StorageProvider, storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
		BaseURL:  cfg.LocalStorageURL,
	}, storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicURL:       cfg.R2PublicURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			CreditsSmallPriceID:  cfg.StripeCreditsSmallPriceID,
			CreditsMediumPriceID: cfg.StripeCreditsMediumPriceID,
			CreditsLargePriceID:  cfg.StripeCreditsLargePriceID,
			VIPMonthlyPriceID:    cfg.StripeVIPMonthlyPriceID,
			VIPYearlyPriceID:     cfg.StripeVIPYearlyPriceID,
		})
		logger.Info("Stripe billing enabled", "products", len(billingService.Products()))
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, payments are disabled")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	loc := cfg.DailyLocation()

	sessions := session.NewStore(cfg.SessionTTL, logger)
	go sessions.Run(ctx, sessionSweepInterval)

	profileService := service.NewProfileService(repo, logger)
	creditGate := service.NewCreditGate(repo, logger)
	historyService := service.NewHistoryService(repo, loc, logger)
	readingService := service.NewReadingService(sessions, creditGate, interpreter, historyService, profileService, service.ReadingServiceConfig{
		RevealInterval: cfg.RevealInterval,
	}, logger)
	dailyService := service.NewDailyService(repo, interpreter, profileService, loc, nil, logger)
	dreamService := service.NewDreamService(creditGate, interpreter, historyService, profileService, logger)
	paymentService := service.NewPaymentService(db, repo, logger)
	adminService := service.NewAdminService(repo, sessions, loc, logger)
	artworkService := service.NewArtworkService(store, logger)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:   cfg.AuthJWTSecret,
		Issuer:   cfg.AuthJWTIssuer,
		Audience: cfg.AuthJWTAudience,
	})
	if err != nil {
		return fmt.Errorf("token verifier initialization failed: %w", err)
	}
	authMw := middleware.NewAuthMiddleware(verifier, profileService, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, rateLimitIdle, logger)
	go limiter.Run(ctx, rateLimitSweepInterval)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)

	requireUser := authMw.RequireUser
	requireAdmin := middleware.Stack(authMw.RequireUser, authMw.RequireAdmin)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("DATABASE UNAVAILABLE"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (protected by basic auth when credentials are configured)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("metrics endpoint is not protected, set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// Card artwork served from local storage; R2 serves its own URLs
	if cfg.StorageProvider == storage.ProviderLocal {
		handler.NewFileHandler(store, logger).RegisterRoutes(mux)
	}

	handler.NewReadingHandler(readingService, logger).RegisterRoutes(mux, requireUser, rateLimitMw.Limit)
	handler.NewOracleHandler(dailyService, dreamService, logger).RegisterRoutes(mux, requireUser, rateLimitMw.Limit)
	handler.NewProfileHandler(profileService, logger).RegisterRoutes(mux, requireUser)
	handler.NewHistoryHandler(historyService, logger).RegisterRoutes(mux, requireUser)
	handler.NewCardHandler(artworkService, logger).RegisterRoutes(mux)
	handler.NewBillingHandler(billingService, profileService, strings.TrimSuffix(cfg.BaseURL, "/"), logger).RegisterRoutes(mux, requireUser)
	handler.NewWebhookHandler(billingService, paymentService, logger).RegisterRoutes(mux)
	handler.NewAdminHandler(adminService, artworkService, logger).RegisterRoutes(mux, requireAdmin)

	// Global middleware, outermost first
	globalStack := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.NewSecurityHeadersMiddleware(!cfg.IsDevelopment()).Handler,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           globalStack(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.AIRequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Let in-flight interpretations finish before the database closes.
	readingService.Close(shutdownCtx)

	logger.Info("Graceful shutdown complete")
	return nil
}

// newAIProvider builds the provider selected by AI_PROVIDER.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	providerCfg := ai.ProviderConfig{RequestTimeout: cfg.AIRequestTimeout}

	switch cfg.AIProvider {
	case "gateway":
		return gateway.New(gateway.Config{
			URL:            cfg.AIGatewayURL,
			Token:          cfg.AIGatewayToken,
			ProviderConfig: providerCfg,
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: providerCfg,
		}, logger)
	default:
		logger.Warn("using mock AI provider")
		return mock.New(logger), nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
