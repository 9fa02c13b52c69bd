package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	JWTAccessSecret []byte

	KafkaBrokers []string
	EventTopic   string

	Currency string

	// Server-side pricing rules. Client-submitted totals are never trusted.
	TaxRateBP        int64
	ShippingStandard int64
	ShippingExpress  int64

	ProviderURL     string
	ProviderTimeout time.Duration
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storecore"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		EventTopic:   EnvDefault("EVENT_TOPIC", "order_events"),

		Currency: EnvDefault("CURRENCY", "USD"),

		TaxRateBP:        EnvInt64Default("TAX_RATE_BP", 0),
		ShippingStandard: EnvInt64Default("SHIPPING_STANDARD", 500),
		ShippingExpress:  EnvInt64Default("SHIPPING_EXPRESS", 1500),

		ProviderURL:     os.Getenv("PAYMENT_PROVIDER_URL"),
		ProviderTimeout: time.Duration(EnvIntDefault("PAYMENT_PROVIDER_TIMEOUT_MS", 10000)) * time.Millisecond,
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvInt64Default(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
