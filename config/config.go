package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"zona-pedidos/internal/apperr"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Secret keys. They are never defaulted; components ask for them with Require.
const (
	KeyAsaasAPIKey         = "ASAAS_API_KEY"
	KeyAsaasWebhookToken   = "ASAAS_WEBHOOK_TOKEN"
	KeyStripeSecretKey     = "STRIPE_SECRET_KEY"
	KeyStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	KeySupabaseJWTSecret   = "SUPABASE_JWT_SECRET"
	KeyOperatorTokenHash   = "OPERATOR_TOKEN_HASH"
)

const (
	ProviderAsaas  = "asaas"
	ProviderStripe = "stripe"
)

type Config struct {
	Port       string
	DBURL      string
	CORSOrigin string
	AppEnv     string

	LogLevel  string
	LogFormat string

	BillingProvider     string
	AsaasBaseURL        string
	StripePriceMonthly  string
	StripePriceYearly   string
	OIDCIssuerURL       string
	OIDCClientID        string
	GatewayRateLimit    float64
	InvoicePollAttempts int
	InvoicePollInterval time.Duration
	SyncConcurrency     int

	TrialDays    int
	GraceDays    int
	PriceMonthly float64
	PriceYearly  float64
	Location     *time.Location

	FamilyCouponCode    string
	FamilyAllowedEmails []string

	secrets map[string]string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found. Using system environment variables.")
	}

	dbURL, err := mustEnv("DB_URL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		DBURL:      dbURL,
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		AppEnv:     getEnv("APP_ENV", "development"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "auto"),

		BillingProvider:    strings.ToLower(getEnv("BILLING_PROVIDER", ProviderAsaas)),
		AsaasBaseURL:       strings.TrimRight(getEnv("ASAAS_BASE_URL", "https://api-sandbox.asaas.com/v3"), "/"),
		StripePriceMonthly: getEnv("STRIPE_PRICE_MONTHLY", ""),
		StripePriceYearly:  getEnv("STRIPE_PRICE_YEARLY", ""),
		OIDCIssuerURL:      getEnv("OIDC_ISSUER_URL", ""),
		OIDCClientID:       getEnv("OIDC_CLIENT_ID", ""),

		FamilyCouponCode:    strings.ToUpper(strings.TrimSpace(getEnv("FAMILY_COUPON_CODE", ""))),
		FamilyAllowedEmails: splitList(getEnv("FAMILY_ALLOWED_EMAILS", "")),

		secrets: map[string]string{},
	}

	if cfg.BillingProvider != ProviderAsaas && cfg.BillingProvider != ProviderStripe {
		return nil, fmt.Errorf("BILLING_PROVIDER must be %q or %q, got %q", ProviderAsaas, ProviderStripe, cfg.BillingProvider)
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"TRIAL_DAYS", 7, &cfg.TrialDays},
		{"GRACE_DAYS", 3, &cfg.GraceDays},
		{"INVOICE_POLL_ATTEMPTS", 3, &cfg.InvoicePollAttempts},
		{"SYNC_CONCURRENCY", 4, &cfg.SyncConcurrency},
	}
	for _, it := range ints {
		v, err := intEnv(it.key, it.def)
		if err != nil {
			return nil, err
		}
		*it.dst = v
	}

	floats := []struct {
		key string
		def float64
		dst *float64
	}{
		{"PRICE_MONTHLY", 49.90, &cfg.PriceMonthly},
		{"PRICE_YEARLY", 499.00, &cfg.PriceYearly},
		{"GATEWAY_RATE_LIMIT", 5, &cfg.GatewayRateLimit},
	}
	for _, it := range floats {
		v, err := floatEnv(it.key, it.def)
		if err != nil {
			return nil, err
		}
		*it.dst = v
	}

	cfg.InvoicePollInterval, err = time.ParseDuration(getEnv("INVOICE_POLL_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("INVOICE_POLL_INTERVAL: %w", err)
	}

	cfg.Location, err = time.LoadLocation(getEnv("BILLING_TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, fmt.Errorf("BILLING_TIMEZONE: %w", err)
	}

	for _, key := range []string{
		KeyAsaasAPIKey,
		KeyAsaasWebhookToken,
		KeyStripeSecretKey,
		KeyStripeWebhookSecret,
		KeySupabaseJWTSecret,
		KeyOperatorTokenHash,
	} {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			cfg.secrets[key] = strings.TrimSpace(v)
		}
	}

	return cfg, nil
}

// Require returns a secret or a configuration error naming the missing key.
func (c *Config) Require(key string) (string, error) {
	if v := c.secrets[key]; v != "" {
		return v, nil
	}
	return "", apperr.ConfigMissing(key)
}

// Secret returns a secret or "" when it is not set.
func (c *Config) Secret(key string) string {
	return c.secrets[key]
}

// SetSecret is used by tests and commands that build a Config by hand.
func (c *Config) SetSecret(key, value string) {
	if c.secrets == nil {
		c.secrets = map[string]string{}
	}
	c.secrets[key] = value
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required environment variable: %s", key)
	}
	return v, nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
