package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}
	if cfg.OfferCountdown != 30*time.Second || cfg.NegotiationThinkDelay != 5*time.Second {
		t.Fatalf("timers = %v / %v", cfg.OfferCountdown, cfg.NegotiationThinkDelay)
	}
	if !cfg.EarningsDaily.Equal(decimal.NewFromInt(1250)) || !cfg.EarningsMonthly.Equal(decimal.NewFromInt(18200)) {
		t.Fatalf("earnings seed = %s / %s", cfg.EarningsDaily, cfg.EarningsMonthly)
	}
	if cfg.AMQPQueue != "driver-locations" || cfg.DemoOfferDelay != 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("OFFER_COUNTDOWN", "10s")
	t.Setenv("NEGOTIATION_UPPER_RATIO", "1.5")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("EARNINGS_WEEKLY", "100.50")
	t.Setenv("MIGRATE", "TRUE")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OfferCountdown != 10*time.Second || !cfg.NegotiationUpper.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.EarningsWeekly.Equal(decimal.RequireFromString("100.5")) || !cfg.RunMigrations {
		t.Fatalf("weekly=%s migrate=%v", cfg.EarningsWeekly, cfg.RunMigrations)
	}
}

func TestInvalidValuesAreJoined(t *testing.T) {
	t.Setenv("OFFER_COUNTDOWN", "soon")
	t.Setenv("EARNINGS_DAILY", "lots")
	t.Setenv("NEGOTIATION_LOWER_RATIO", "2")
	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"OFFER_COUNTDOWN", "EARNINGS_DAILY", "ratios"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_GROUP", "g1")
	cfg, err := LoadConsumerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KafkaGroup != "g1" || cfg.KafkaTopic != "driver-locations" || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("consumer config = %+v", cfg)
	}
}
