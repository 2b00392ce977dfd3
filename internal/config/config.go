package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ServerConfig captures all tunable parameters for the driver API process.
// Values are loaded from environment variables with defaults that let the
// binary run locally with no brokers or databases at all.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DriverID string

	OfferCountdown        time.Duration
	NegotiationWindow     time.Duration
	NegotiationThinkDelay time.Duration
	NegotiationLower      decimal.Decimal
	NegotiationUpper      decimal.Decimal
	PickupSpeedMps        float64
	DemoOfferDelay        time.Duration // zero disables the demo offer

	EarningsDaily   decimal.Decimal
	EarningsWeekly  decimal.Decimal
	EarningsMonthly decimal.Decimal

	KafkaBrokers []string
	KafkaTopic   string

	AMQPURL   string
	AMQPQueue string

	TelemetryTimeout time.Duration

	PGDSN string

	AlertPushEndpoint string
	AlertPushKey      string
	AlertPushToken    string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:              ":8080",
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           120 * time.Second,
		ShutdownTimeout:       15 * time.Second,
		DriverID:              "driver-1",
		OfferCountdown:        30 * time.Second,
		NegotiationWindow:     30 * time.Second,
		NegotiationThinkDelay: 5 * time.Second,
		NegotiationLower:      decimal.RequireFromString("0.8"),
		NegotiationUpper:      decimal.RequireFromString("1.2"),
		PickupSpeedMps:        8,
		EarningsDaily:         decimal.NewFromInt(1250),
		EarningsWeekly:        decimal.NewFromInt(4850),
		EarningsMonthly:       decimal.NewFromInt(18200),
		KafkaTopic:            "driver-locations",
		AMQPQueue:             "driver-locations",
		TelemetryTimeout:      2 * time.Second,
		LogLevel:              "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.DriverID, "DRIVER_ID")

	setDurationFromEnv(&cfg.OfferCountdown, "OFFER_COUNTDOWN", &errs)
	setDurationFromEnv(&cfg.NegotiationWindow, "NEGOTIATION_WINDOW", &errs)
	setDurationFromEnv(&cfg.NegotiationThinkDelay, "NEGOTIATION_THINK_DELAY", &errs)
	setDecimalFromEnv(&cfg.NegotiationLower, "NEGOTIATION_LOWER_RATIO", &errs)
	setDecimalFromEnv(&cfg.NegotiationUpper, "NEGOTIATION_UPPER_RATIO", &errs)
	setFloatFromEnv(&cfg.PickupSpeedMps, "PICKUP_SPEED_MPS", &errs)
	setDurationFromEnv(&cfg.DemoOfferDelay, "DEMO_OFFER_DELAY", &errs)

	setDecimalFromEnv(&cfg.EarningsDaily, "EARNINGS_DAILY", &errs)
	setDecimalFromEnv(&cfg.EarningsWeekly, "EARNINGS_WEEKLY", &errs)
	setDecimalFromEnv(&cfg.EarningsMonthly, "EARNINGS_MONTHLY", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	setStringFromEnv(&cfg.AMQPQueue, "AMQP_QUEUE")
	setDurationFromEnv(&cfg.TelemetryTimeout, "TELEMETRY_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.AlertPushEndpoint = strings.TrimSpace(os.Getenv("ALERT_PUSH_ENDPOINT"))
	cfg.AlertPushKey = os.Getenv("ALERT_PUSH_KEY")
	cfg.AlertPushToken = os.Getenv("ALERT_PUSH_TOKEN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.OfferCountdown <= 0 {
		errs = append(errs, fmt.Errorf("OFFER_COUNTDOWN must be > 0"))
	}
	if cfg.NegotiationWindow <= 0 {
		errs = append(errs, fmt.Errorf("NEGOTIATION_WINDOW must be > 0"))
	}
	if cfg.NegotiationThinkDelay < 0 {
		errs = append(errs, fmt.Errorf("NEGOTIATION_THINK_DELAY must be >= 0"))
	}
	if !cfg.NegotiationLower.IsPositive() || cfg.NegotiationLower.GreaterThan(cfg.NegotiationUpper) {
		errs = append(errs, fmt.Errorf("negotiation ratios must satisfy 0 < lower <= upper"))
	}
	if cfg.PickupSpeedMps <= 0 {
		errs = append(errs, fmt.Errorf("PICKUP_SPEED_MPS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig is the telemetry consumer's view of the environment.
type ConsumerConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	LogLevel      string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "driver-locations",
		KafkaGroup:   "tow-dispatch-consumer",
		RedisAddr:    "localhost:6379",
		RedisGeoKey:  "drivers_geo",
		LogLevel:     "info",
	}
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_BROKERS must name at least one broker")
	}
	return cfg, nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setDecimalFromEnv(target *decimal.Decimal, key string, errs *[]error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
