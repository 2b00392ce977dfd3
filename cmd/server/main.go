package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/tow-dispatch/internal/alert"
	"github.com/example/tow-dispatch/internal/config"
	"github.com/example/tow-dispatch/internal/dispatch"
	httpapi "github.com/example/tow-dispatch/internal/http"
	"github.com/example/tow-dispatch/internal/ledger"
	"github.com/example/tow-dispatch/internal/location"
	"github.com/example/tow-dispatch/internal/logging"
	"github.com/example/tow-dispatch/internal/models"
	"github.com/example/tow-dispatch/internal/negotiation"
	"github.com/example/tow-dispatch/internal/offer"
	"github.com/example/tow-dispatch/internal/storage"
	"github.com/example/tow-dispatch/internal/telemetry"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("tow-dispatch", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	store := openStore(cfg, logger)

	sink := openTelemetry(cfg, logger)
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("telemetry close", "error", err)
		}
	}()

	var notifier offer.Notifier = alert.LogNotifier{Logger: logger}
	if cfg.AlertPushEndpoint != "" {
		notifier = alert.Multi{alert.LogNotifier{Logger: logger}, alert.NewPushNotifier(cfg.AlertPushEndpoint, cfg.AlertPushKey, cfg.AlertPushToken)}
	}

	seed := models.Earnings{Daily: cfg.EarningsDaily, Weekly: cfg.EarningsWeekly, Monthly: cfg.EarningsMonthly}
	l := ledger.New(seed, store, logger)
	tracker := location.NewTracker(cfg.DriverID, sink)
	wsreg := dispatch.NewWSRegistry(logger)

	ctrl := offer.New(offer.Config{
		Countdown:      cfg.OfferCountdown,
		ResponseWindow: cfg.NegotiationWindow,
		SpeedMps:       cfg.PickupSpeedMps,
	}, offer.Deps{
		Ledger:    l,
		Responder: negotiation.NewSimulatedCustomer(cfg.NegotiationThinkDelay, negotiation.Band{Lower: cfg.NegotiationLower, Upper: cfg.NegotiationUpper}),
		Notifier:  notifier,
		Listener:  wsreg,
		Location:  tracker,
		Logger:    logger,
	})

	api := httpapi.NewServer(httpapi.Options{
		Offers:         ctrl,
		Ledger:         l,
		Tracker:        tracker,
		WSReg:          wsreg,
		Logger:         logger,
		DemoOfferDelay: cfg.DemoOfferDelay,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("tow-dispatch listening", "addr", cfg.HTTPAddr, "driver_id", cfg.DriverID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	// an open offer is rejected the same way as the driver going offline
	ctrl.SetOnline(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	ctrl.Close()
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// openStore prefers Postgres when PG_DSN is set and falls back to memory.
func openStore(cfg config.ServerConfig, logger *slog.Logger) storage.TripStore {
	if cfg.PGDSN == "" {
		return storage.NewMemoryStore()
	}
	ps, err := storage.NewPostgresStore(cfg.PGDSN)
	if err != nil {
		logger.Warn("postgres unavailable, keeping trip history in memory", "error", err)
		return storage.NewMemoryStore()
	}
	if cfg.RunMigrations {
		applyMigration(ps.DB(), filepath.Join("migrations", "001_create_trips.sql"), logger)
	}
	return ps
}

func applyMigration(db *sql.DB, path string, logger *slog.Logger) {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Error("migration read error", "path", path, "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec error", "path", path, "error", err)
		return
	}
	logger.Info("migration applied", "path", path)
}

// openTelemetry builds the location sink from whichever brokers are configured.
// With none configured fixes are only kept in memory.
func openTelemetry(cfg config.ServerConfig, logger *slog.Logger) *telemetry.Sink {
	var pubs telemetry.Fanout
	if cfg.AMQPURL != "" {
		p, err := telemetry.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("rabbitmq unavailable, location telemetry not published there", "error", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		pubs = append(pubs, telemetry.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	if len(pubs) == 0 {
		return nil
	}
	return telemetry.NewSink("location", pubs, cfg.TelemetryTimeout, logger)
}
