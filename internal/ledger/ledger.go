package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/models"
	"github.com/example/tow-dispatch/internal/observability"
	"github.com/example/tow-dispatch/internal/storage"
)

var (
	// ErrTripActive is returned when accepting while a trip is already in progress.
	ErrTripActive = errors.New("ledger: a trip is already active")
	// ErrNoActiveTrip is returned when cancelling or completing with no trip in progress.
	ErrNoActiveTrip = errors.New("ledger: no active trip")
	ErrInvalidPrice = errors.New("ledger: price must be positive")
)

// Ledger holds the single active trip and the running earnings totals.
// History rows go to Store; store failures are logged and never undo in-memory state.
type Ledger struct {
	mu       sync.RWMutex
	earnings models.Earnings
	active   *models.ActiveTrip
	store    storage.TripStore
	logger   *slog.Logger
	now      func() time.Time
}

func New(seed models.Earnings, store storage.TripStore, logger *slog.Logger) *Ledger {
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{earnings: seed, store: store, logger: logger, now: time.Now}
	l.publishGauges()
	return l
}

// AcceptOffer opens a trip for o at price and credits the earnings.
func (l *Ledger) AcceptOffer(o models.Offer, price decimal.Decimal) (models.ActiveTrip, error) {
	if !price.IsPositive() {
		return models.ActiveTrip{}, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	l.mu.Lock()
	if l.active != nil {
		id := l.active.ID
		l.mu.Unlock()
		return models.ActiveTrip{}, fmt.Errorf("%w: %s", ErrTripActive, id)
	}
	trip := &models.ActiveTrip{
		ID:             uuid.NewString(),
		OfferID:        o.ID,
		Pickup:         o.Pickup,
		Dropoff:        o.Dropoff,
		PickupAddress:  o.PickupAddress,
		DropoffAddress: o.DropoffAddress,
		FinalPrice:     price,
		Negotiated:     !price.Equal(o.BasePrice),
		Status:         models.TripActive,
		AcceptedAt:     l.now(),
	}
	l.active = trip
	l.earnings = l.earnings.Add(price)
	snapshot := *trip
	l.publishGauges()
	l.mu.Unlock()

	l.logger.Info("trip accepted", "trip_id", snapshot.ID, "offer_id", o.ID, "price", price.StringFixed(2), "negotiated", snapshot.Negotiated)
	l.record(snapshot, true)
	return snapshot, nil
}

// CancelActiveTrip discards the active trip and debits exactly what AcceptOffer credited.
func (l *Ledger) CancelActiveTrip() (models.ActiveTrip, error) {
	l.mu.Lock()
	if l.active == nil {
		l.mu.Unlock()
		return models.ActiveTrip{}, ErrNoActiveTrip
	}
	trip := *l.active
	l.active = nil
	l.earnings = l.earnings.Sub(trip.FinalPrice)
	l.publishGauges()
	l.mu.Unlock()

	trip.Status = models.TripCancelled
	l.logger.Info("trip cancelled", "trip_id", trip.ID, "refunded", trip.FinalPrice.StringFixed(2))
	l.record(trip, false)
	return trip, nil
}

// CompleteActiveTrip closes the active trip. Earnings were credited at accept time
// and are left untouched.
func (l *Ledger) CompleteActiveTrip() (models.ActiveTrip, error) {
	l.mu.Lock()
	if l.active == nil {
		l.mu.Unlock()
		return models.ActiveTrip{}, ErrNoActiveTrip
	}
	trip := *l.active
	l.active = nil
	now := l.now()
	trip.Status = models.TripCompleted
	trip.CompletedAt = &now
	l.publishGauges()
	l.mu.Unlock()

	l.logger.Info("trip completed", "trip_id", trip.ID, "price", trip.FinalPrice.StringFixed(2))
	l.record(trip, false)
	return trip, nil
}

func (l *Ledger) Earnings() models.Earnings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.earnings
}

func (l *Ledger) ActiveTrip() (models.ActiveTrip, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.active == nil {
		return models.ActiveTrip{}, false
	}
	return *l.active, true
}

func (l *Ledger) HasActiveTrip() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active != nil
}

func (l *Ledger) Availability() models.Availability {
	if l.HasActiveTrip() {
		return models.Busy
	}
	return models.Available
}

func (l *Ledger) History() ([]models.Trip, error) {
	return l.store.ListTrips()
}

func (l *Ledger) record(trip models.ActiveTrip, created bool) {
	row := &models.Trip{ActiveTrip: trip, UpdatedAt: l.now()}
	var err error
	if created {
		err = l.store.SaveTrip(row)
	} else {
		err = l.store.UpdateTrip(row)
	}
	if err != nil {
		l.logger.Warn("trip history write failed", "trip_id", trip.ID, "status", trip.Status, "error", err)
	}
}

// caller holds l.mu
func (l *Ledger) publishGauges() {
	observability.EarningsTotal.WithLabelValues("daily").Set(l.earnings.Daily.InexactFloat64())
	observability.EarningsTotal.WithLabelValues("weekly").Set(l.earnings.Weekly.InexactFloat64())
	observability.EarningsTotal.WithLabelValues("monthly").Set(l.earnings.Monthly.InexactFloat64())
	if l.active != nil {
		observability.ActiveTrips.Set(1)
	} else {
		observability.ActiveTrips.Set(0)
	}
}
