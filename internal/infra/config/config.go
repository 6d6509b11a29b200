package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment names.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Fallback modes.
const (
	FallbackAuto = "auto"
	FallbackOn   = "on"
	FallbackOff  = "off"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	HTTPClient   HTTPClientConfig   `mapstructure:"http_client"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Store        StoreConfig        `mapstructure:"store"`
	Notifier     NotifierConfig     `mapstructure:"notifier"`
	Card         CardConfig         `mapstructure:"card"`
	Wallet       WalletConfig       `mapstructure:"wallet"`
	CryptoFiat   CryptoFiatConfig   `mapstructure:"crypto_fiat"`
	CryptoNative CryptoNativeConfig `mapstructure:"crypto_native"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxWebhookBytes int64         `mapstructure:"max_webhook_bytes"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	// Keep-alive settings
	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// Enabled enables/disables rate limiting.
	Enabled bool `mapstructure:"enabled"`
	// Limit is the number of requests per client IP per window.
	Limit int `mapstructure:"limit"`
	// Window is the rate limit window.
	Window time.Duration `mapstructure:"window"`
	// IdempotencyTTL is the TTL for idempotency keys.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// AuthConfig holds identity verification configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	// Required rejects session creation without a valid bearer token.
	Required bool `mapstructure:"required"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PaymentConfig holds orchestration behavior shared by all providers.
type PaymentConfig struct {
	Environment string `mapstructure:"environment"`
	// Fallback is auto, on or off. Auto enables degraded sessions outside production.
	Fallback        string        `mapstructure:"fallback"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	// SignatureTolerance bounds the age of timestamped signatures. Zero disables the check.
	SignatureTolerance    time.Duration `mapstructure:"signature_tolerance"`
	AllowUnsignedWebhooks bool          `mapstructure:"allow_unsigned_webhooks"`
	Breaker               BreakerConfig `mapstructure:"breaker"`
}

// FallbackEnabled reports whether degraded sessions may be synthesized.
func (c *PaymentConfig) FallbackEnabled() bool {
	switch strings.ToLower(c.Fallback) {
	case FallbackOn:
		return true
	case FallbackOff:
		return false
	default:
		return !c.IsProduction()
	}
}

// IsProduction reports whether the service runs in production.
func (c *PaymentConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// BreakerConfig holds per-provider circuit breaker settings.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Interval         time.Duration `mapstructure:"interval"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// SessionTTL bounds how long the redis store keeps a session.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// NotifierConfig holds completion notification channels.
type NotifierConfig struct {
	// Channels lists enabled channels: log, telegram, kafka, amqp.
	Channels  []string       `mapstructure:"channels"`
	QueueSize int            `mapstructure:"queue_size"`
	Workers   int            `mapstructure:"workers"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Kafka     KafkaConfig    `mapstructure:"kafka"`
	AMQP      AMQPConfig     `mapstructure:"amqp"`
}

// TelegramConfig holds the Telegram bot notifier configuration.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// KafkaConfig holds the Kafka notifier configuration.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// AMQPConfig holds the RabbitMQ notifier configuration.
type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// CardConfig holds card (Stripe) provider configuration.
type CardConfig struct {
	SecretKey          string `mapstructure:"secret_key"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	BaseURL            string `mapstructure:"base_url"`
	CheckoutURLPattern string `mapstructure:"checkout_url_pattern"`
}

// WalletConfig holds wallet (PayPal) provider configuration.
type WalletConfig struct {
	ClientID           string `mapstructure:"client_id"`
	ClientSecret       string `mapstructure:"client_secret"`
	WebhookID          string `mapstructure:"webhook_id"`
	Sandbox            bool   `mapstructure:"sandbox"`
	BaseURL            string `mapstructure:"base_url"`
	BrandName          string `mapstructure:"brand_name"`
	CheckoutURLPattern string `mapstructure:"checkout_url_pattern"`
}

// APIBaseURL returns the configured base URL or the live/sandbox default.
func (c *WalletConfig) APIBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Sandbox {
		return "https://api-m.sandbox.paypal.com"
	}
	return "https://api-m.paypal.com"
}

// CryptoFiatConfig holds crypto-to-fiat (Coinbase Commerce) provider configuration.
type CryptoFiatConfig struct {
	APIKey             string `mapstructure:"api_key"`
	APIVersion         string `mapstructure:"api_version"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	BaseURL            string `mapstructure:"base_url"`
	CheckoutURLPattern string `mapstructure:"checkout_url_pattern"`
}

// CryptoNativeConfig holds native crypto processor configuration.
type CryptoNativeConfig struct {
	APIKey             string `mapstructure:"api_key"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	BaseURL            string `mapstructure:"base_url"`
	CheckoutURLPattern string `mapstructure:"checkout_url_pattern"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	// Optional .env for local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/paygate")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applySecretOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applySecretOverrides reads sensitive values from explicit environment variables.
func applySecretOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"PAYGATE_JWT_SECRET", &cfg.Auth.JWTSecret},
		{"PAYGATE_DB_PASSWORD", &cfg.Database.Password},
		{"PAYGATE_REDIS_PASSWORD", &cfg.Redis.Password},
		{"PAYGATE_CARD_SECRET_KEY", &cfg.Card.SecretKey},
		{"PAYGATE_CARD_WEBHOOK_SECRET", &cfg.Card.WebhookSecret},
		{"PAYGATE_WALLET_CLIENT_ID", &cfg.Wallet.ClientID},
		{"PAYGATE_WALLET_CLIENT_SECRET", &cfg.Wallet.ClientSecret},
		{"PAYGATE_WALLET_WEBHOOK_ID", &cfg.Wallet.WebhookID},
		{"PAYGATE_CRYPTO_FIAT_API_KEY", &cfg.CryptoFiat.APIKey},
		{"PAYGATE_CRYPTO_FIAT_WEBHOOK_SECRET", &cfg.CryptoFiat.WebhookSecret},
		{"PAYGATE_CRYPTO_NATIVE_API_KEY", &cfg.CryptoNative.APIKey},
		{"PAYGATE_CRYPTO_NATIVE_WEBHOOK_SECRET", &cfg.CryptoNative.WebhookSecret},
		{"PAYGATE_TELEGRAM_BOT_TOKEN", &cfg.Notifier.Telegram.BotToken},
		{"PAYGATE_AMQP_URL", &cfg.Notifier.AMQP.URL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks option combinations that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("invalid store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == StoreRedis && c.Redis.Address == "" {
		return errors.New("store driver redis requires redis.address")
	}
	switch strings.ToLower(c.Payment.Fallback) {
	case FallbackAuto, FallbackOn, FallbackOff:
	default:
		return fmt.Errorf("invalid payment.fallback %q", c.Payment.Fallback)
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return errors.New("auth.required needs auth.jwt_secret")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_webhook_bytes", 1<<20)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "paygate")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 20*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 120)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.idempotency_ttl", 24*time.Hour)

	// Auth defaults
	v.SetDefault("auth.required", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Payment defaults
	v.SetDefault("payment.environment", EnvDevelopment)
	v.SetDefault("payment.fallback", FallbackAuto)
	v.SetDefault("payment.provider_timeout", 15*time.Second)
	v.SetDefault("payment.signature_tolerance", time.Duration(0))
	v.SetDefault("payment.allow_unsigned_webhooks", false)
	v.SetDefault("payment.breaker.enabled", true)
	v.SetDefault("payment.breaker.failure_threshold", 5)
	v.SetDefault("payment.breaker.interval", time.Minute)
	v.SetDefault("payment.breaker.open_timeout", 30*time.Second)

	// Store defaults
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.session_ttl", 720*time.Hour)

	// Notifier defaults
	v.SetDefault("notifier.channels", []string{"log"})
	v.SetDefault("notifier.queue_size", 256)
	v.SetDefault("notifier.workers", 2)
	v.SetDefault("notifier.timeout", 10*time.Second)
	v.SetDefault("notifier.kafka.topic", "payments.completed")
	v.SetDefault("notifier.amqp.queue", "payments.completed")

	// Provider defaults
	v.SetDefault("card.base_url", "https://api.stripe.com")
	v.SetDefault("card.checkout_url_pattern", "https://checkout.stripe.com/pay/{id}")
	v.SetDefault("wallet.sandbox", true)
	v.SetDefault("wallet.checkout_url_pattern", "https://www.paypal.com/checkoutnow?token={id}")
	v.SetDefault("crypto_fiat.base_url", "https://api.commerce.coinbase.com")
	v.SetDefault("crypto_fiat.api_version", "2018-03-22")
	v.SetDefault("crypto_fiat.checkout_url_pattern", "https://commerce.coinbase.com/charges/{id}")
	v.SetDefault("crypto_native.base_url", "https://api.example-crypto.io")
	v.SetDefault("crypto_native.checkout_url_pattern", "https://pay.example-crypto.io/checkout/{id}")
}
