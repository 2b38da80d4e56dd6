package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	Database   DatabaseConfig
	Redis      RedisConfig
	Delhivery  DelhiveryConfig
	Shiprocket ShiprocketConfig
	Razorpay   RazorpayConfig

	// ShippingProvider selects the active courier integration: "delhivery" or "shiprocket".
	ShippingProvider string
	// ShippingWebhookKey authenticates inbound courier webhooks (x-api-key header).
	ShippingWebhookKey string
	// AdminAPIKeyHash is the bcrypt hash of the admin Bearer key. AdminAPIKey
	// is the plain fallback for local development.
	AdminAPIKeyHash string
	AdminAPIKey     string

	// SubscriberWebhookURL receives fire-and-forget order status events; empty disables.
	SubscriberWebhookURL string
	// TrackingSweepInterval is how often the reconciliation sweep runs.
	TrackingSweepInterval time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig backs the shared idempotency ledger. An empty Addr keeps the
// ledger in-process, which is only safe for single-instance deployments.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DelhiveryConfig struct {
	BaseURL        string
	APIKey         string
	PickupLocation string
}

type ShiprocketConfig struct {
	BaseURL        string
	Email          string
	Password       string
	PickupLocation string
}

type RazorpayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SHIPPING_PROVIDER", "delhivery")
	viper.SetDefault("TRACKING_SWEEP_INTERVAL_MINUTES", "30")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	sweepMinutes := viper.GetInt("TRACKING_SWEEP_INTERVAL_MINUTES")
	if sweepMinutes <= 0 {
		sweepMinutes = 30
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "mobilecover"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getEnvOrViper("REDIS_ADDR", "")),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Delhivery: DelhiveryConfig{
			BaseURL:        strings.TrimSpace(getEnvOrViper("DELHIVERY_BASE_URL", "https://track.delhivery.com")),
			APIKey:         strings.TrimSpace(getEnvOrViper("DELHIVERY_API_KEY", "")),
			PickupLocation: strings.TrimSpace(getEnvOrViper("DELHIVERY_PICKUP_LOCATION", "")),
		},
		Shiprocket: ShiprocketConfig{
			BaseURL:        strings.TrimSpace(getEnvOrViper("SHIPROCKET_BASE_URL", "https://apiv2.shiprocket.in")),
			Email:          strings.TrimSpace(getEnvOrViper("SHIPROCKET_EMAIL", "")),
			Password:       strings.TrimSpace(getEnvOrViper("SHIPROCKET_PASSWORD", "")),
			PickupLocation: strings.TrimSpace(getEnvOrViper("SHIPROCKET_PICKUP_LOCATION", "Primary")),
		},
		Razorpay: RazorpayConfig{
			BaseURL:       strings.TrimSpace(getEnvOrViper("RAZORPAY_BASE_URL", "https://api.razorpay.com")),
			KeyID:         strings.TrimSpace(getEnvOrViper("RAZORPAY_KEY_ID", "")),
			KeySecret:     strings.TrimSpace(getEnvOrViper("RAZORPAY_KEY_SECRET", "")),
			WebhookSecret: strings.TrimSpace(getEnvOrViper("RAZORPAY_WEBHOOK_SECRET", "")),
		},
		ShippingProvider:      strings.ToLower(strings.TrimSpace(getEnvOrViper("SHIPPING_PROVIDER", "delhivery"))),
		ShippingWebhookKey:    strings.TrimSpace(getEnvOrViper("SHIPPING_WEBHOOK_KEY", "")),
		AdminAPIKeyHash:       strings.TrimSpace(getEnvOrViper("ADMIN_API_KEY_HASH", "")),
		AdminAPIKey:           strings.TrimSpace(getEnvOrViper("ADMIN_API_KEY", "")),
		SubscriberWebhookURL:  strings.TrimSpace(getEnvOrViper("SUBSCRIBER_WEBHOOK_URL", "")),
		TrackingSweepInterval: time.Duration(sweepMinutes) * time.Minute,
	}

	// Validate required fields
	if cfg.ShippingProvider != "delhivery" && cfg.ShippingProvider != "shiprocket" {
		return nil, fmt.Errorf("SHIPPING_PROVIDER must be delhivery or shiprocket, got %q", cfg.ShippingProvider)
	}
	if cfg.ShippingWebhookKey == "" {
		return nil, fmt.Errorf("SHIPPING_WEBHOOK_KEY is required")
	}
	if cfg.Razorpay.WebhookSecret == "" {
		return nil, fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}
	if cfg.AdminAPIKeyHash == "" && cfg.AdminAPIKey == "" {
		return nil, fmt.Errorf("ADMIN_API_KEY_HASH or ADMIN_API_KEY is required")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
