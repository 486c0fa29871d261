// Package config loads service configuration with viper. Values come from
// defaults, an optional config file, then the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/domain/recovery"
)

// EnvPrefix prefixes every key without a dedicated variable, e.g.
// PARFUM_RECOVERY_GRACE_WINDOW
const EnvPrefix = "PARFUM"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Order     OrderConfig     `mapstructure:"order"`
	Recovery  RecoveryConfig  `mapstructure:"recovery"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	WebDir          string        `mapstructure:"web_dir"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the event store. An empty URL keeps events in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig selects the stock store. An empty address keeps stock in memory.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// KafkaConfig enables the broker. Without brokers events go over the
// in-process bus.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	From     string        `mapstructure:"from"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// QueueSize bounds the mails waiting for delivery in the API process
	QueueSize int `mapstructure:"queue_size"`
}

type OrderConfig struct {
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold"`
	ShippingFee           string `mapstructure:"shipping_fee"`
	RestockOnCancel       bool   `mapstructure:"restock_on_cancel"`
}

type RecoveryConfig struct {
	GraceWindow    time.Duration   `mapstructure:"grace_window"`
	UrgentAge      time.Duration   `mapstructure:"urgent_age"`
	UrgentAttempts int             `mapstructure:"urgent_attempts"`
	HighValue      string          `mapstructure:"high_value"`
	Stages         []time.Duration `mapstructure:"stages"`
	SweepInterval  time.Duration   `mapstructure:"sweep_interval"`
	CartURL        string          `mapstructure:"cart_url"`
}

type AnalyticsConfig struct {
	CheckoutPath  string        `mapstructure:"checkout_path"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// Retention is how long ended sessions are kept for statistics
	Retention time.Duration `mapstructure:"retention"`
}

// envNames are the variables shared with the other services of the shop
var envNames = map[string]string{
	"server.addr":    "HTTP_ADDR",
	"database.url":   "DATABASE_URL",
	"redis.addr":     "REDIS_ADDR",
	"redis.password": "REDIS_PASSWORD",
	"kafka.brokers":  "KAFKA_BROKERS",
	"kafka.topic":    "KAFKA_TOPIC",
	"jwt.secret":     "JWT_SECRET",
	"jwt.issuer":     "JWT_ISSUER",
	"smtp.host":      "SMTP_HOST",
	"smtp.port":      "SMTP_PORT",
	"smtp.from":      "SMTP_FROM",
	"smtp.username":  "SMTP_USERNAME",
	"smtp.password":  "SMTP_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	orderDefaults := order.DefaultConfig()
	recoveryDefaults := recovery.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.web_dir", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "parfum:stock:")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "parfum-events")
	v.SetDefault("kafka.consumer_group", "parfum-recovery")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", "1025")
	v.SetDefault("smtp.from", "noreply@example.com")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.timeout", 10*time.Second)
	v.SetDefault("smtp.queue_size", 256)

	v.SetDefault("order.free_shipping_threshold", orderDefaults.FreeShippingThreshold.String())
	v.SetDefault("order.shipping_fee", orderDefaults.ShippingFee.String())
	v.SetDefault("order.restock_on_cancel", orderDefaults.RestockOnCancel)

	v.SetDefault("recovery.grace_window", recoveryDefaults.GraceWindow)
	v.SetDefault("recovery.urgent_age", recoveryDefaults.UrgentAge)
	v.SetDefault("recovery.urgent_attempts", recoveryDefaults.UrgentAttempts)
	v.SetDefault("recovery.high_value", recoveryDefaults.HighValue.String())
	v.SetDefault("recovery.stages", recoveryDefaults.Stages)
	v.SetDefault("recovery.sweep_interval", time.Minute)
	v.SetDefault("recovery.cart_url", "")

	v.SetDefault("analytics.checkout_path", "/checkout")
	v.SetDefault("analytics.idle_timeout", 30*time.Minute)
	v.SetDefault("analytics.sweep_interval", time.Minute)
	v.SetDefault("analytics.retention", 30*24*time.Hour)
}

// Load reads the configuration. configPath may be empty.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	if _, err := c.Order.EngineConfig(); err != nil {
		return err
	}
	if _, err := c.Recovery.EngineConfig(); err != nil {
		return err
	}
	if c.Recovery.SweepInterval <= 0 || c.Analytics.SweepInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}
	if c.SMTP.Timeout <= 0 {
		return fmt.Errorf("smtp.timeout must be positive")
	}
	if c.Analytics.Retention <= 0 {
		return fmt.Errorf("analytics.retention must be positive")
	}
	return nil
}

// EngineConfig converts the order settings for order.NewService
func (c OrderConfig) EngineConfig() (order.Config, error) {
	threshold, err := decimal.NewFromString(c.FreeShippingThreshold)
	if err != nil {
		return order.Config{}, fmt.Errorf("order.free_shipping_threshold: %w", err)
	}
	fee, err := decimal.NewFromString(c.ShippingFee)
	if err != nil {
		return order.Config{}, fmt.Errorf("order.shipping_fee: %w", err)
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return order.Config{}, fmt.Errorf("order amounts cannot be negative")
	}
	return order.Config{
		FreeShippingThreshold: threshold,
		ShippingFee:           fee,
		RestockOnCancel:       c.RestockOnCancel,
	}, nil
}

// EngineConfig converts the recovery settings for recovery.NewEngine
func (c RecoveryConfig) EngineConfig() (recovery.Config, error) {
	highValue, err := decimal.NewFromString(c.HighValue)
	if err != nil {
		return recovery.Config{}, fmt.Errorf("recovery.high_value: %w", err)
	}
	if c.GraceWindow <= 0 {
		return recovery.Config{}, fmt.Errorf("recovery.grace_window must be positive")
	}
	for i := 1; i < len(c.Stages); i++ {
		if c.Stages[i] < c.Stages[i-1] {
			return recovery.Config{}, fmt.Errorf("recovery.stages must be ascending")
		}
	}
	return recovery.Config{
		GraceWindow:    c.GraceWindow,
		UrgentAge:      c.UrgentAge,
		UrgentAttempts: c.UrgentAttempts,
		HighValue:      highValue,
		Stages:         c.Stages,
	}, nil
}
