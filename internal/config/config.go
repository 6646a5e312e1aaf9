/**
 * @description
 * Configuration management for the lease service and its scheduler.
 * Values are read from environment variables (and an optional .env file loaded
 * by the entry points) through viper.
 */
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	defaultSweepBatchLimit = 200
	maxSweepBatchLimit     = 500
)

// Config holds all configuration for the lease service.
type Config struct {
	ServerPort                      string `mapstructure:"SERVER_PORT"`
	DatabaseURL                     string `mapstructure:"DATABASE_URL"`
	ClerkJWKSURL                    string `mapstructure:"CLERK_JWKS_URL"`
	ClerkAudience                   string `mapstructure:"CLERK_AUDIENCE"`
	ClerkIssuer                     string `mapstructure:"CLERK_ISSUER"`
	InternalAPIKey                  string `mapstructure:"INTERNAL_API_KEY"`
	AdminUserIDs                    string `mapstructure:"ADMIN_USER_IDS"`
	BusinessTimezone                string `mapstructure:"BUSINESS_TIMEZONE"`
	Currency                        string `mapstructure:"CURRENCY"`
	RabbitMQURL                     string `mapstructure:"RABBITMQ_URL"`
	EventsExchange                  string `mapstructure:"EVENTS_EXCHANGE"`
	RedisURL                        string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix            string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	GuestCheckoutRateLimitPerMinute int    `mapstructure:"GUEST_CHECKOUT_RATE_LIMIT_PER_MINUTE"`
	GatewayBaseURL                  string `mapstructure:"GATEWAY_BASE_URL"`
	GatewayAPIKey                   string `mapstructure:"GATEWAY_API_KEY"`
	GatewaySecretKey                string `mapstructure:"GATEWAY_SECRET_KEY"`
	GatewayCallbackURL              string `mapstructure:"GATEWAY_CALLBACK_URL"`
	GatewayTimeoutSeconds           int    `mapstructure:"GATEWAY_TIMEOUT_SECONDS"`
	PaymentResultURL                string `mapstructure:"PAYMENT_RESULT_URL"`
	SweepBatchLimit                 int    `mapstructure:"SWEEP_BATCH_LIMIT"`
	ReconcileLookbackDays           int    `mapstructure:"RECONCILE_LOOKBACK_DAYS"`
}

// Admins returns the configured admin subject ids.
func (c Config) Admins() []string {
	var ids []string
	for _, id := range strings.Split(c.AdminUserIDs, ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// LoadConfig reads configuration from environment variables and validates the
// fields the service cannot start without.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BUSINESS_TIMEZONE", "Europe/Istanbul")
	viper.SetDefault("CURRENCY", "TRY")
	viper.SetDefault("EVENTS_EXCHANGE", "lease.events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lease:rate_limit")
	viper.SetDefault("GUEST_CHECKOUT_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SWEEP_BATCH_LIMIT", defaultSweepBatchLimit)
	viper.SetDefault("RECONCILE_LOOKBACK_DAYS", 14)
	viper.AutomaticEnv()

	for _, key := range []string{
		"SERVER_PORT",
		"PORT",
		"DATABASE_URL",
		"CLERK_JWKS_URL",
		"CLERK_AUDIENCE",
		"CLERK_ISSUER",
		"INTERNAL_API_KEY",
		"ADMIN_USER_IDS",
		"BUSINESS_TIMEZONE",
		"CURRENCY",
		"RABBITMQ_URL",
		"EVENTS_EXCHANGE",
		"REDIS_URL",
		"REDIS_RATE_LIMIT_PREFIX",
		"GUEST_CHECKOUT_RATE_LIMIT_PER_MINUTE",
		"GATEWAY_BASE_URL",
		"GATEWAY_API_KEY",
		"GATEWAY_SECRET_KEY",
		"GATEWAY_CALLBACK_URL",
		"GATEWAY_TIMEOUT_SECONDS",
		"PAYMENT_RESULT_URL",
		"SWEEP_BATCH_LIMIT",
		"RECONCILE_LOOKBACK_DAYS",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}

	config.SweepBatchLimit = clampBatchLimit(config.SweepBatchLimit)
	if config.ReconcileLookbackDays <= 0 {
		config.ReconcileLookbackDays = 14
	}
	if config.GatewayTimeoutSeconds <= 0 {
		config.GatewayTimeoutSeconds = 30
	}

	err = requireSet(map[string]string{
		"DATABASE_URL":         config.DatabaseURL,
		"CLERK_JWKS_URL":       config.ClerkJWKSURL,
		"INTERNAL_API_KEY":     config.InternalAPIKey,
		"GATEWAY_BASE_URL":     config.GatewayBaseURL,
		"GATEWAY_API_KEY":      config.GatewayAPIKey,
		"GATEWAY_SECRET_KEY":   config.GatewaySecretKey,
		"GATEWAY_CALLBACK_URL": config.GatewayCallbackURL,
		"PAYMENT_RESULT_URL":   config.PaymentResultURL,
	})
	if err != nil {
		return config, err
	}
	err = validateTimezone("BUSINESS_TIMEZONE", config.BusinessTimezone)
	return config, err
}

// validateTimezone rejects names the tz database does not know. Due dates
// and payout days are computed in this zone, so a silent UTC fallback would
// shift them.
func validateTimezone(key, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s must name a timezone", key)
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, name, err)
	}
	return nil
}

func clampBatchLimit(limit int) int {
	if limit <= 0 {
		return defaultSweepBatchLimit
	}
	if limit > maxSweepBatchLimit {
		return maxSweepBatchLimit
	}
	return limit
}

func requireSet(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
}

