// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the NodeService gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// HTTPAddr is the address of the REST API (users, health, metrics).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the lifetime of user API tokens (e.g. "168h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31) for invited user passwords.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// Env is the application environment (e.g. "development", "production").
	Env      string `mapstructure:"APP_ENV"`
	Version  string `mapstructure:"APP_VERSION"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// RetellBaseURL is the voice provider API root; API keys are per company.
	RetellBaseURL string `mapstructure:"RETELL_BASE_URL"`
	// EngineWebhookURL is the workflow engine root used for running-status and trigger callbacks.
	EngineWebhookURL string `mapstructure:"ENGINE_WEBHOOK_URL"`

	// Zoho CRM OAuth client. Refresh tokens are stored per company.
	ZohoAccountsURL  string `mapstructure:"ZOHO_ACCOUNTS_URL"`
	ZohoAPIURL       string `mapstructure:"ZOHO_API_URL"`
	ZohoClientID     string `mapstructure:"ZOHO_CLIENT_ID"`
	ZohoClientSecret string `mapstructure:"ZOHO_CLIENT_SECRET"`

	// Redis holds trigger static data. Empty RedisAddr falls back to memory.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL      string `mapstructure:"LOKI_URL"`
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// Call defaults used when a node leaves maxAttempts/retryAfterDays unset.
	DefaultMaxAttempts    int `mapstructure:"DEFAULT_MAX_ATTEMPTS"`
	DefaultRetryAfterDays int `mapstructure:"DEFAULT_RETRY_AFTER_DAYS"`
	// CronFrequencyMinutes is the step used when turning business hours into cron expressions.
	CronFrequencyMinutes int `mapstructure:"CRON_FREQUENCY_MINUTES"`
	// CallConcurrency bounds concurrent dials in one CallProcessor run.
	CallConcurrency int `mapstructure:"CALL_CONCURRENCY"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "callflow-auth")
	v.SetDefault("JWT_AUDIENCE", "callflow-api")
	v.SetDefault("JWT_ACCESS_TTL", "168h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RETELL_BASE_URL", "https://api.retellai.com")
	v.SetDefault("ENGINE_WEBHOOK_URL", "")
	v.SetDefault("ZOHO_ACCOUNTS_URL", "https://accounts.zoho.com")
	v.SetDefault("ZOHO_API_URL", "https://www.zohoapis.com/crm/v8")
	v.SetDefault("ZOHO_CLIENT_ID", "")
	v.SetDefault("ZOHO_CLIENT_SECRET", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "callflow-telemetry")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "callflow-telemetry-worker")
	v.SetDefault("DEFAULT_MAX_ATTEMPTS", 3)
	v.SetDefault("DEFAULT_RETRY_AFTER_DAYS", 1)
	v.SetDefault("CRON_FREQUENCY_MINUTES", 1)
	v.SetDefault("CALL_CONCURRENCY", 8)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.CallConcurrency <= 0 {
		return nil, errors.New("config: CALL_CONCURRENCY must be greater than 0")
	}
	if cfg.CronFrequencyMinutes <= 0 || cfg.CronFrequencyMinutes > 59 {
		return nil, errors.New("config: CRON_FREQUENCY_MINUTES must be between 1 and 59")
	}
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = 3
	}
	if cfg.DefaultRetryAfterDays < 0 {
		cfg.DefaultRetryAfterDays = 1
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// AuthEnabled reports whether both JWT keys are configured.
func (c *Config) AuthEnabled() bool {
	return c != nil && c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
