package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public base URL of the client app (checkout return links)
	BaseURL string

	// Tokens are issued by the external auth system and signed with a
	// shared HS256 secret.
	AuthJWTSecret   string
	AuthJWTIssuer   string
	AuthJWTAudience string

	// AI Provider Configuration
	AIProvider       string // "gateway", "anthropic" or "mock"
	AIGatewayURL     string
	AIGatewayToken   string
	AnthropicAPIKey  string
	AnthropicModel   string
	AIRequestTimeout time.Duration
	ReadingLanguage  string // BCP 47 tag of the interpretations

	// Readings
	RevealInterval time.Duration
	SessionTTL     time.Duration
	DailyTimezone  string

	// Rate limiting of the routes that call the AI
	RateLimitRPS   float64
	RateLimitBurst int

	// Storage Configuration (card artwork)
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string
	LocalStorageURL  string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Stripe Billing Configuration
	// In development, billing routes report payments as unavailable if these are empty.
	StripeSecretKey     string
	StripeWebhookSecret string

	// Stripe Price IDs for credit packs and VIP plans
	StripeCreditsSmallPriceID  string
	StripeCreditsMediumPriceID string
	StripeCreditsLargePriceID  string
	StripeVIPMonthlyPriceID    string
	StripeVIPYearlyPriceID     string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// DailyLocation resolves DailyTimezone. Validated by NewConfig.
func (c *Config) DailyLocation() *time.Location {
	loc, err := time.LoadLocation(c.DailyTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment reports whether the server runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:5173"),

		AuthJWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
		AuthJWTIssuer:   getEnv("AUTH_JWT_ISSUER", ""),
		AuthJWTAudience: getEnv("AUTH_JWT_AUDIENCE", ""),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AIGatewayURL:     getEnv("AI_GATEWAY_URL", ""),
		AIGatewayToken:   getEnv("AI_GATEWAY_TOKEN", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second),
		ReadingLanguage:  getEnv("READING_LANGUAGE", "pt-BR"),

		RevealInterval: getEnvDuration("REVEAL_INTERVAL", 800*time.Millisecond),
		SessionTTL:     getEnvDuration("SESSION_TTL", 2*time.Hour),
		DailyTimezone:  getEnv("DAILY_TIMEZONE", "UTC"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0.5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 5),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeCreditsSmallPriceID:  getEnv("STRIPE_CREDITS_SMALL_PRICE_ID", ""),
		StripeCreditsMediumPriceID: getEnv("STRIPE_CREDITS_MEDIUM_PRICE_ID", ""),
		StripeCreditsLargePriceID:  getEnv("STRIPE_CREDITS_LARGE_PRICE_ID", ""),
		StripeVIPMonthlyPriceID:    getEnv("STRIPE_VIP_MONTHLY_PRICE_ID", ""),
		StripeVIPYearlyPriceID:     getEnv("STRIPE_VIP_YEARLY_PRICE_ID", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if !cfg.IsDevelopment() && len(cfg.AuthJWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes outside development")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate AI provider configuration
	switch cfg.AIProvider {
	case "gateway":
		if cfg.AIGatewayURL == "" {
			return fmt.Errorf("AI_GATEWAY_URL is required when AI_PROVIDER is 'gateway'")
		}
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	case "mock":
		if !cfg.IsDevelopment() {
			return fmt.Errorf("AI_PROVIDER 'mock' is only allowed in development")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be 'gateway', 'anthropic' or 'mock', got: %s", cfg.AIProvider)
	}

	if _, err := time.LoadLocation(cfg.DailyTimezone); err != nil {
		return fmt.Errorf("DAILY_TIMEZONE is not a known time zone: %w", err)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
