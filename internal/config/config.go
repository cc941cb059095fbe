package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string `mapstructure:"SERVICE_NAME"`
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CartCacheTTL  time.Duration `mapstructure:"CART_CACHE_TTL"`

	KafkaBrokers     []string      `mapstructure:"KAFKA_BROKERS"`
	OrderEventsTopic string        `mapstructure:"ORDER_EVENTS_TOPIC"`
	OutboxInterval   time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`

	GatewayBaseURL   string        `mapstructure:"PAYMENT_GATEWAY_URL"`
	GatewayKeyID     string        `mapstructure:"PAYMENT_GATEWAY_KEY_ID"`
	GatewayKeySecret string        `mapstructure:"PAYMENT_GATEWAY_KEY_SECRET"`
	GatewayTimeout   time.Duration `mapstructure:"PAYMENT_GATEWAY_TIMEOUT"`
	Currency         string        `mapstructure:"PAYMENT_CURRENCY"`

	PendingOrderTTL time.Duration `mapstructure:"PENDING_ORDER_TTL"`
	SweepInterval   time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVICE_NAME":               "store-service",
	"HTTP_PORT":                  "8080",
	"LOG_LEVEL":                  "info",
	"LOG_PRETTY":                 false,
	"MONGO_URI":                  "mongodb://localhost:27017/?replicaSet=rs0",
	"MONGO_DATABASE":             "store",
	"REDIS_ADDR":                 "localhost:6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"CART_CACHE_TTL":             15 * time.Minute,
	"KAFKA_BROKERS":              []string{"localhost:9092"},
	"ORDER_EVENTS_TOPIC":         "store-order-events",
	"OUTBOX_POLL_INTERVAL":       time.Second,
	"PAYMENT_GATEWAY_URL":        "https://api.razorpay.com",
	"PAYMENT_GATEWAY_KEY_ID":     "",
	"PAYMENT_GATEWAY_KEY_SECRET": "",
	"PAYMENT_GATEWAY_TIMEOUT":    5 * time.Second,
	"PAYMENT_CURRENCY":           "INR",
	"PENDING_ORDER_TTL":          24 * time.Hour,
	"EXPIRY_SWEEP_INTERVAL":      5 * time.Minute,
	"JWT_SECRET":                 "",
	"REQUEST_TIMEOUT":            15 * time.Second,
}

// Load reads defaults, then the optional file named by CONFIG_FILE, then the environment.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// A single env var holds a comma-separated broker list.
	if len(cfg.KafkaBrokers) == 1 && strings.Contains(cfg.KafkaBrokers[0], ",") {
		cfg.KafkaBrokers = strings.Split(cfg.KafkaBrokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.GatewayKeySecret == "" {
		errs = append(errs, errors.New("PAYMENT_GATEWAY_KEY_SECRET is required"))
	}
	if c.PendingOrderTTL <= 0 {
		errs = append(errs, errors.New("PENDING_ORDER_TTL must be positive"))
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	return errors.Join(errs...)
}
