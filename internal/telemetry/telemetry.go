package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/tow-dispatch/internal/models"
	"github.com/example/tow-dispatch/internal/observability"
)

// Publisher delivers one location update to a broker.
type Publisher interface {
	Publish(ctx context.Context, u models.LocationUpdate) error
	Close() error
}

// Fanout publishes to every configured broker and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, u models.LocationUpdate) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Sink is the fire-and-forget front of a Publisher: Publish returns at once and
// failures are only logged and counted.
type Sink struct {
	pub     Publisher
	name    string
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewSink(name string, pub Publisher, timeout time.Duration, logger *slog.Logger) *Sink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{pub: pub, name: name, timeout: timeout, logger: logger}
}

func (s *Sink) Publish(u models.LocationUpdate) {
	if s == nil || s.pub == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		observability.TelemetryPublished.WithLabelValues(s.name, "dropped").Inc()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.pub.Publish(ctx, u); err != nil {
			observability.TelemetryPublished.WithLabelValues(s.name, "error").Inc()
			s.logger.Warn("telemetry publish failed", "sink", s.name, "driver_id", u.DriverID, "error", err)
			return
		}
		observability.TelemetryPublished.WithLabelValues(s.name, "ok").Inc()
	}()
}

// Close waits for in-flight publishes and closes the publisher. Updates
// published afterwards are dropped.
func (s *Sink) Close() error {
	if s == nil || s.pub == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return s.pub.Close()
}
