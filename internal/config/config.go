package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/meterline/meterline/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment     DeploymentConfig     `validate:"required"`
	Server         ServerConfig         `validate:"required"`
	Logging        LoggingConfig        `validate:"required"`
	Postgres       PostgresConfig       `validate:"required"`
	Gateway        GatewayConfig        `validate:"required"`
	Webhook        WebhookConfig        `validate:"required"`
	Idempotency    IdempotencyConfig    `validate:"required"`
	Reconciliation ReconciliationConfig `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

// GatewayConfig configures the payment gateway adapter and its retry policy
type GatewayConfig struct {
	Provider      types.PaymentProvider `validate:"required"`
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	// MaxRetries bounds the exponential backoff retry for transient errors
	MaxRetries int
	// BreakerThreshold is the consecutive-failure count that opens the circuit
	BreakerThreshold int
	// BreakerCooldown is how long the circuit stays open before probing again
	BreakerCooldown time.Duration
}

// WebhookConfig configures inbound webhook verification and the canonical
// event pipeline
type WebhookConfig struct {
	Topic  string           `validate:"required"`
	PubSub types.PubSubType `validate:"required"`
	// ReplayWindow bounds how old a signed webhook timestamp may be
	ReplayWindow time.Duration
	// Workers is the size of the consumer pool draining the canonical topic
	Workers int
	// Consumer retry policy for transient handler failures
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

type IdempotencyConfig struct {
	// TTL is the retention window for idempotency records
	TTL time.Duration
}

type ReconciliationConfig struct {
	// Window is the lookback window for batch reconciliation runs
	Window time.Duration
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/meterline")

	v.SetEnvPrefix("METERLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.maxopenconns", 10)
	v.SetDefault("postgres.maxidleconns", 5)
	v.SetDefault("postgres.connmaxlifetimeminutes", 30)
	v.SetDefault("gateway.provider", string(types.PaymentProviderStripe))
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.maxretries", 3)
	v.SetDefault("gateway.breakerthreshold", 5)
	v.SetDefault("gateway.breakercooldown", 30*time.Second)
	v.SetDefault("webhook.topic", "payment_events")
	v.SetDefault("webhook.pubsub", string(types.MemoryPubSub))
	v.SetDefault("webhook.replaywindow", 5*time.Minute)
	v.SetDefault("webhook.workers", 8)
	v.SetDefault("webhook.maxretries", 3)
	v.SetDefault("webhook.initialinterval", 1*time.Second)
	v.SetDefault("webhook.maxinterval", 10*time.Second)
	v.SetDefault("webhook.multiplier", 2.0)
	v.SetDefault("webhook.maxelapsedtime", 2*time.Minute)
	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("reconciliation.window", 24*time.Hour)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Gateway.Provider.Validate()
}

// GetDefaultConfig returns a default configuration for local development
// and unit tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Gateway: GatewayConfig{
			Provider:         types.PaymentProviderStripe,
			Timeout:          10 * time.Second,
			MaxRetries:       3,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Webhook: WebhookConfig{
			Topic:           "payment_events",
			PubSub:          types.MemoryPubSub,
			ReplayWindow:    5 * time.Minute,
			Workers:         8,
			MaxRetries:      3,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
			MaxElapsedTime:  5 * time.Second,
		},
		Idempotency:    IdempotencyConfig{TTL: 24 * time.Hour},
		Reconciliation: ReconciliationConfig{Window: 24 * time.Hour},
	}
}

// GetMigrationURL returns the URL form of the DSN used by golang-migrate.
func (c PostgresConfig) GetMigrationURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode,
	)
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
