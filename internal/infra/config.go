package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	PublicBaseURL string

	JWTSecret          string
	JWTExpirationHours int
	BcryptCost         int
	SignupCredits      int

	ReplicateAPIToken      string
	ReplicateBaseURL       string
	ReplicateModelVersion  string
	BackgroundModelVersion string
	ReplicateWebhookSecret string
	ProviderTimeout        time.Duration

	StoragePath        string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	RateLimitPerMin    int

	PurchaseWebhookSecret string
	PurchasePermalinks    map[int]string

	ReconcileSchedule   string
	ReconcileStaleAfter time.Duration
	ReconcileBatchSize  int
	ReconcileMaxAge     time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		PublicBaseURL:          os.Getenv("PUBLIC_BASE_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		JWTExpirationHours:     getEnvInt("JWT_EXPIRATION_HOURS", 24),
		BcryptCost:             getEnvInt("BCRYPT_COST", 12),
		SignupCredits:          getEnvInt("SIGNUP_CREDITS", 3),
		ReplicateAPIToken:      strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:       getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModelVersion:  getEnv("REPLICATE_MODEL_VERSION", "67ed00e8999fecd32035074fa0f2e9a31ee03b57a8415e6a5e2f93a242ddd8d2"),
		BackgroundModelVersion: getEnv("REPLICATE_BACKGROUND_MODEL_VERSION", "95fcc2a26d3899cd6c2691c9e261a2c93b64410a975773b4d455434f44230118"),
		ReplicateWebhookSecret: strings.TrimSpace(os.Getenv("REPLICATE_WEBHOOK_SECRET")),
		ProviderTimeout:        getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		StoragePath:            getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath:            os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RateLimitPerMin:        getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		PurchaseWebhookSecret:  strings.TrimSpace(os.Getenv("PURCHASE_WEBHOOK_SECRET")),
		PurchasePermalinks: map[int]string{
			50:  strings.TrimSpace(os.Getenv("PURCHASE_PERMALINK_50")),
			200: strings.TrimSpace(os.Getenv("PURCHASE_PERMALINK_200")),
			500: strings.TrimSpace(os.Getenv("PURCHASE_PERMALINK_500")),
		},
		ReconcileSchedule:   getEnv("RECONCILE_SCHEDULE", "@every 30s"),
		ReconcileStaleAfter: getEnvDuration("RECONCILE_STALE_AFTER", 2*time.Minute),
		ReconcileBatchSize:  getEnvInt("RECONCILE_BATCH_SIZE", 25),
		ReconcileMaxAge:     getEnvDuration("RECONCILE_MAX_AGE", time.Hour),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.JWTExpirationHours < 1 {
		return nil, fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1, got %d", cfg.JWTExpirationHours)
	}

	if cfg.SignupCredits < 0 {
		return nil, fmt.Errorf("SIGNUP_CREDITS must not be negative, got %d", cfg.SignupCredits)
	}

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.Port
	}
	if _, err := url.ParseRequestURI(cfg.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("PUBLIC_BASE_URL is invalid: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return cfg, nil
}

// WebhookURL is the callback the inference provider posts completed predictions to.
func (c *Config) WebhookURL() string {
	return c.PublicBaseURL + "/webhooks/replicate"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
