package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DBUrl              string
	GoogleClientID     string
	GoogleClientSecret string
	JWTSecret          string
	Port               string
	Host               string
	Env                string
	AllowedOrigins     []string

	RedisURL      string
	RedisPassword string

	PaystackSecret  string
	PaystackBaseURL string

	ProviderAPIKey  string
	ProviderBaseURL string
	ProviderTimeout time.Duration

	// TopUpFeeRate is the gateway processing fee added on top of a requested credit.
	TopUpFeeRate    decimal.Decimal
	TopUpTolerance  decimal.Decimal
	MinTopUpAmount  int64
	AgentUpgradeFee int64
	MaxMarkup       int64

	PriceCatalogFile string

	SweepSchedule   string
	SweepStaleAfter time.Duration
	WebhookWorkers  int

	APIRateLimit float64
	APIRateBurst int
}

func LoadConfig() Config {
	godotenv.Load()

	return Config{
		DBUrl:              getEnv("DATABASE_URL"),
		GoogleClientID:     getEnvDefault("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnvDefault("GOOGLE_CLIENT_SECRET", ""),
		JWTSecret:          getEnv("JWT_SECRET"),
		Port:               getEnvDefault("PORT", "8080"),
		Host:               getEnvDefault("HOST", "http://localhost:8080"),
		Env:                getEnvDefault("ENV", "development"),
		AllowedOrigins:     strings.Split(getEnvDefault("ALLOWED_ORIGINS", "*"), ","),

		RedisURL:      getEnvDefault("REDIS_URL", ""),
		RedisPassword: getEnvDefault("REDIS_PASSWORD", ""),

		PaystackSecret:  getEnv("PAYSTACK_SECRET"),
		PaystackBaseURL: getEnvDefault("PAYSTACK_BASE_URL", "https://api.paystack.co"),

		ProviderAPIKey:  getEnv("PROVIDER_API_KEY"),
		ProviderBaseURL: getEnvDefault("PROVIDER_BASE_URL", "https://console.ckgodsway.com/api"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 30*time.Second),

		TopUpFeeRate:    getDecimal("TOPUP_FEE_RATE", "0.02"),
		TopUpTolerance:  getDecimal("TOPUP_TOLERANCE", "0.50"),
		MinTopUpAmount:  getInt64("MIN_TOPUP_AMOUNT", 100),
		AgentUpgradeFee: getInt64("AGENT_UPGRADE_FEE", 1500),
		MaxMarkup:       getInt64("MAX_MARKUP", 2000),

		PriceCatalogFile: getEnvDefault("PRICE_CATALOG_FILE", ""),

		SweepSchedule:   getEnvDefault("SWEEP_SCHEDULE", "@every 5m"),
		SweepStaleAfter: getDuration("SWEEP_STALE_AFTER", 15*time.Minute),
		WebhookWorkers:  int(getInt64("WEBHOOK_WORKERS", 4)),

		APIRateLimit: getDecimal("API_RATE_LIMIT", "5").InexactFloat64(),
		APIRateBurst: int(getInt64("API_RATE_BURST", 10)),
	}
}

// Validate rejects combinations that LoadConfig cannot catch key by key.
func (c Config) Validate() error {
	if c.Env == "production" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required in production, acknowledged webhooks would not survive a restart")
	}
	if c.WebhookWorkers < 1 {
		return fmt.Errorf("WEBHOOK_WORKERS must be at least 1")
	}
	return nil
}

func getEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	panic(fmt.Sprintf("%s is required", key))
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("%s must be a valid integer", key))
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		panic(fmt.Sprintf("%s must be a valid duration", key))
	}
	return value
}

func getDecimal(key, fallback string) decimal.Decimal {
	raw := getEnvDefault(key, fallback)
	value, err := decimal.NewFromString(raw)
	if err != nil {
		panic(fmt.Sprintf("%s must be a valid decimal", key))
	}
	return value
}
