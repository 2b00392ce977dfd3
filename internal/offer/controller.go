package offer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/geo"
	"github.com/example/tow-dispatch/internal/models"
	"github.com/example/tow-dispatch/internal/negotiation"
	"github.com/example/tow-dispatch/internal/observability"
)

var (
	ErrOffline           = errors.New("offer: driver is offline")
	ErrOfferInFlight     = errors.New("offer: another offer is still open")
	ErrDriverBusy        = errors.New("offer: driver has an active trip")
	ErrInvalidOffer      = errors.New("offer: base price must be a positive amount")
	ErrInvalidTransition = errors.New("offer: invalid transition")
)

// Ledger is the trip & earnings side the controller hands accepted offers to.
type Ledger interface {
	AcceptOffer(o models.Offer, price decimal.Decimal) (models.ActiveTrip, error)
	CancelActiveTrip() (models.ActiveTrip, error)
	CompleteActiveTrip() (models.ActiveTrip, error)
	HasActiveTrip() bool
}

// Responder answers a counter-offer after Delay.
type Responder interface {
	Delay() time.Duration
	Respond(base, proposed decimal.Decimal) negotiation.Result
}

// Notifier plays the audible/haptic offer alert.
type Notifier interface {
	PlayAlert(ctx context.Context, o models.Offer) error
	StopAlert(ctx context.Context, offerID string) error
}

// Listener receives every state change and countdown tick.
type Listener interface {
	OfferEvent(ev models.OfferEvent)
}

// LocationSource reports the driver's current position, if known.
type LocationSource interface {
	Current() (models.Coord, bool)
}

// Countdowns tick once per second.
const tick = time.Second

type Config struct {
	Countdown      time.Duration // offer countdown
	ResponseWindow time.Duration // negotiation countdown shown while waiting on the customer
	SpeedMps       float64       // pickup ETA estimate
	AlertTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Countdown:      30 * time.Second,
		ResponseWindow: 30 * time.Second,
		SpeedMps:       geo.DefaultSpeedMps,
		AlertTimeout:   2 * time.Second,
	}
}

// Deps are the collaborators of a Controller. Only Ledger is required.
type Deps struct {
	Ledger    Ledger
	Responder Responder
	Notifier  Notifier
	Listener  Listener
	Location  LocationSource
	Scheduler Scheduler
	Logger    *slog.Logger
	Now       func() time.Time
}

// Snapshot is a read-only view of the controller for the UI.
type Snapshot struct {
	State            string                     `json:"state"`
	Reason           string                     `json:"reason,omitempty"`
	Online           bool                       `json:"online"`
	Availability     models.Availability        `json:"availability"`
	RemainingSeconds int                        `json:"remaining_seconds"`
	ExpiresAt        *time.Time                 `json:"expires_at,omitempty"`
	Offer            *models.Offer              `json:"offer,omitempty"`
	PriceRange       *models.PriceRange         `json:"price_range,omitempty"`
	Attempt          *models.NegotiationAttempt `json:"attempt,omitempty"`
}

// PriceCheck is the live hint shown while the driver types a counter-offer.
type PriceCheck struct {
	Price      decimal.Decimal   `json:"price"`
	Parsed     bool              `json:"parsed"`
	Reasonable bool              `json:"reasonable"`
	Range      models.PriceRange `json:"range"`
}

// bounder is implemented by responders that can say up front which prices
// they accept.
type bounder interface {
	Bounds(base decimal.Decimal) (lo, hi decimal.Decimal)
}

// Controller drives one offer at a time through present, negotiate and resolve.
// API calls and timer callbacks are serialised on mu. Alerts and listener
// events are queued under mu and delivered in that order by the effect
// goroutine, so callers never wait on them.
type Controller struct {
	cfg       Config
	ledger    Ledger
	responder Responder
	notifier  Notifier
	listener  Listener
	location  LocationSource
	sched     Scheduler
	logger    *slog.Logger
	now       func() time.Time
	fx        *effectQueue

	mu          sync.Mutex
	online      bool
	state       State
	reason      string
	offer       *models.Offer
	attempt     *models.NegotiationAttempt
	remaining   int
	presentedAt time.Time
	countdown   Timer
	response    Timer
	gen         uint64 // bumped whenever timers are replaced; stale callbacks compare against it
}

func New(cfg Config, deps Deps) *Controller {
	def := DefaultConfig()
	if cfg.Countdown <= 0 {
		cfg.Countdown = def.Countdown
	}
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = def.ResponseWindow
	}
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = def.AlertTimeout
	}
	c := &Controller{
		cfg:       cfg,
		ledger:    deps.Ledger,
		responder: deps.Responder,
		notifier:  deps.Notifier,
		listener:  deps.Listener,
		location:  deps.Location,
		sched:     deps.Scheduler,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if c.responder == nil {
		c.responder = negotiation.NewSimulatedCustomer(5*time.Second, negotiation.DefaultBand())
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.sched == nil {
		c.sched = RealScheduler()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.fx = newEffectQueue()
	return c
}

// Close waits for queued alerts and events to be delivered and stops the
// delivery goroutine.
func (c *Controller) Close() {
	c.fx.close()
}

// effects collects the side effects of one locked section. They are queued
// before mu is released and run on the effect goroutine.
type effects []func()

func (fx *effects) add(f func()) { *fx = append(*fx, f) }

func (c *Controller) do(fn func(fx *effects) error) error {
	var fx effects
	c.mu.Lock()
	defer c.mu.Unlock()
	err := fn(&fx)
	c.fx.push(fx)
	return err
}

// SetOnline flips the driver's online gate. Going offline with an open offer
// rejects it.
func (c *Controller) SetOnline(online bool) {
	_ = c.do(func(fx *effects) error {
		c.setOnlineLocked(fx, online)
		return nil
	})
}

func (c *Controller) setOnlineLocked(fx *effects, online bool) {
	if c.online == online {
		return
	}
	c.online = online
	if online {
		observability.DriverOnline.Set(1)
	} else {
		observability.DriverOnline.Set(0)
	}
	c.logger.Info("driver availability changed", "online", online)
	if !online && c.state.InFlight() {
		c.rejectAttemptLocked()
		c.resolveLocked(fx, StateRejected, ReasonOffline, nil)
	}
}

func (c *Controller) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// PresentOffer shows o to the driver and starts its countdown.
func (c *Controller) PresentOffer(o models.Offer) error {
	return c.do(func(fx *effects) error {
		switch {
		case !c.online:
			return ErrOffline
		case c.state.InFlight():
			return fmt.Errorf("%w: %s", ErrOfferInFlight, c.offer.ID)
		case c.ledger.HasActiveTrip():
			return ErrDriverBusy
		case !negotiation.ValidAmount(o.BasePrice):
			return ErrInvalidOffer
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		now := c.now()
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		c.stopTimersLocked()
		c.state = StatePresented
		c.reason = ""
		c.offer = &o
		c.attempt = nil
		c.presentedAt = now
		c.remaining = seconds(c.cfg.Countdown)
		c.scheduleTickLocked(c.gen)
		observability.OffersPresented.Inc()

		c.logger.Info("offer presented", "offer_id", o.ID, "base_price", o.BasePrice.StringFixed(2), "countdown_s", c.remaining)
		ev := c.eventLocked(models.EventState)
		if c.location != nil {
			if here, ok := c.location.Current(); ok {
				ev.PickupDistanceM = geo.Distance(here, o.Pickup)
				ev.PickupETASeconds = geo.EstimateSeconds(here, o.Pickup, c.cfg.SpeedMps)
			}
		}
		fx.add(func() { c.playAlert(o) })
		c.emit(fx, ev)
		return nil
	})
}

// Accept takes the offer at its base price.
func (c *Controller) Accept() (models.ActiveTrip, error) {
	var trip models.ActiveTrip
	err := c.do(func(fx *effects) error {
		if c.state != StatePresented {
			return c.invalidLocked("accept")
		}
		t, err := c.ledger.AcceptOffer(*c.offer, c.offer.BasePrice)
		if err != nil {
			return err
		}
		trip = t
		c.resolveLocked(fx, StateAccepted, ReasonDriver, &t)
		return nil
	})
	return trip, err
}

// Reject declines the offer.
func (c *Controller) Reject() error {
	return c.do(func(fx *effects) error {
		if c.state != StatePresented {
			return c.invalidLocked("reject")
		}
		c.resolveLocked(fx, StateRejected, ReasonDriver, nil)
		return nil
	})
}

// BeginNegotiation sends a counter-offer typed by the driver. Unparseable input
// is replaced by the base price rather than failing.
func (c *Controller) BeginNegotiation(priceText string) (models.NegotiationAttempt, error) {
	var attempt models.NegotiationAttempt
	err := c.do(func(fx *effects) error {
		if c.state != StatePresented {
			return c.invalidLocked("negotiate")
		}
		price, ok := negotiation.ParsePrice(priceText, c.offer.BasePrice)
		if !ok {
			c.logger.Warn("counter-offer not understood, using base price", "offer_id", c.offer.ID, "input", priceText)
		}
		c.stopTimersLocked()
		c.attempt = &models.NegotiationAttempt{
			ID:             uuid.NewString(),
			OfferID:        c.offer.ID,
			RawInput:       priceText,
			ProposedPrice:  price,
			Parsed:         ok,
			Outcome:        models.OutcomePending,
			StartedAt:      c.now(),
			ResponseWindow: c.cfg.ResponseWindow,
		}
		c.state = StateNegotiating
		c.remaining = seconds(c.cfg.ResponseWindow)
		gen := c.gen
		c.scheduleTickLocked(gen)
		c.response = c.sched.AfterFunc(c.responder.Delay(), func() { c.onResponse(gen) })

		c.logger.Info("negotiation started", "offer_id", c.offer.ID, "proposed", price.StringFixed(2), "base_price", c.offer.BasePrice.StringFixed(2))
		attempt = *c.attempt
		c.emit(fx, c.eventLocked(models.EventState))
		return nil
	})
	return attempt, err
}

// CancelActiveTrip reverses the accepted trip and its earnings credit.
func (c *Controller) CancelActiveTrip() (models.ActiveTrip, error) {
	trip, err := c.ledger.CancelActiveTrip()
	if err != nil {
		return trip, err
	}
	_ = c.do(func(fx *effects) error {
		ev := c.eventLocked(models.EventTrip)
		ev.OfferID = trip.OfferID
		ev.Reason = ReasonTripCancelled
		ev.Trip = &trip
		c.emit(fx, ev)
		return nil
	})
	return trip, nil
}

// CompleteActiveTrip finishes the trip; GoOffline also takes the driver offline.
func (c *Controller) CompleteActiveTrip(next Next) (models.ActiveTrip, error) {
	trip, err := c.ledger.CompleteActiveTrip()
	if err != nil {
		return trip, err
	}
	_ = c.do(func(fx *effects) error {
		ev := c.eventLocked(models.EventTrip)
		ev.OfferID = trip.OfferID
		ev.Reason = ReasonTripCompleted
		ev.Trip = &trip
		c.emit(fx, ev)
		if next == GoOffline {
			c.setOnlineLocked(fx, false)
		}
		return nil
	})
	return trip, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:            c.state.String(),
		Reason:           c.reason,
		Online:           c.online,
		Availability:     models.Available,
		RemainingSeconds: c.remaining,
	}
	if c.ledger.HasActiveTrip() {
		s.Availability = models.Busy
	}
	if c.offer != nil {
		o := *c.offer
		s.Offer = &o
		s.PriceRange = c.priceRange(o.BasePrice)
	}
	if c.attempt != nil {
		a := *c.attempt
		s.Attempt = &a
	}
	switch c.state {
	case StatePresented:
		at := c.presentedAt.Add(c.cfg.Countdown)
		s.ExpiresAt = &at
	case StateNegotiating:
		at := c.attempt.StartedAt.Add(c.attempt.ResponseWindow)
		s.ExpiresAt = &at
	}
	return s
}

// CheckPrice parses text the way BeginNegotiation would and reports whether
// the customer is expected to take it. Nothing changes state.
func (c *Controller) CheckPrice(text string) (PriceCheck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePresented {
		return PriceCheck{}, c.invalidLocked("check price")
	}
	base := c.offer.BasePrice
	price, ok := negotiation.ParsePrice(text, base)
	r := c.priceRange(base)
	return PriceCheck{
		Price:      price,
		Parsed:     ok,
		Reasonable: !price.LessThan(r.Min) && !price.GreaterThan(r.Max),
		Range:      *r,
	}, nil
}

func (c *Controller) priceRange(base decimal.Decimal) *models.PriceRange {
	b, ok := c.responder.(bounder)
	if !ok {
		b = negotiation.DefaultBand()
	}
	lo, hi := b.Bounds(base)
	return &models.PriceRange{Min: lo, Max: hi}
}

func (c *Controller) scheduleTickLocked(gen uint64) {
	c.countdown = c.sched.AfterFunc(tick, func() { c.onTick(gen) })
}

func (c *Controller) onTick(gen uint64) {
	_ = c.do(func(fx *effects) error {
		if gen != c.gen || !c.state.InFlight() {
			return nil
		}
		c.remaining--
		if c.remaining > 0 {
			c.emit(fx, c.eventLocked(models.EventCountdown))
			c.scheduleTickLocked(gen)
			return nil
		}
		c.remaining = 0
		if c.state == StatePresented {
			c.onCountdownExpiredLocked(fx)
			return nil
		}
		c.logger.Info("customer did not answer in time", "offer_id", c.offer.ID)
		c.rejectAttemptLocked()
		c.resolveLocked(fx, StateRejected, ReasonNoResponse, nil)
		return nil
	})
}

func (c *Controller) onCountdownExpiredLocked(fx *effects) {
	c.logger.Info("offer timed out", "offer_id", c.offer.ID)
	c.resolveLocked(fx, StateTimedOut, ReasonTimeout, nil)
}

func (c *Controller) onResponse(gen uint64) {
	_ = c.do(func(fx *effects) error {
		if gen != c.gen || c.state != StateNegotiating {
			return nil
		}
		o, a := *c.offer, c.attempt
		result := c.responder.Respond(o.BasePrice, a.ProposedPrice)
		observability.NegotiationOutcomes.WithLabelValues(string(result.Outcome)).Inc()
		if !result.Accepted() {
			a.Outcome = models.OutcomeRejected
			c.logger.Info("counter-offer rejected", "offer_id", o.ID, "proposed", a.ProposedPrice.StringFixed(2))
			c.resolveLocked(fx, StateRejected, ReasonCounterRejected, nil)
			return nil
		}
		trip, err := c.ledger.AcceptOffer(o, result.FinalPrice)
		if err != nil {
			c.logger.Error("negotiated offer refused by ledger", "offer_id", o.ID, "error", err)
			a.Outcome = models.OutcomeRejected
			c.resolveLocked(fx, StateRejected, ReasonLedgerRefused, nil)
			return nil
		}
		a.Outcome = models.OutcomeAccepted
		a.FinalPrice = result.FinalPrice
		c.logger.Info("counter-offer accepted", "offer_id", o.ID, "final_price", result.FinalPrice.StringFixed(2))
		c.resolveLocked(fx, StateAccepted, ReasonNegotiated, &trip)
		return nil
	})
}

func (c *Controller) rejectAttemptLocked() {
	if c.attempt != nil && c.attempt.Outcome == models.OutcomePending {
		c.attempt.Outcome = models.OutcomeRejected
	}
}

func (c *Controller) resolveLocked(fx *effects, to State, reason string, trip *models.ActiveTrip) {
	c.stopTimersLocked()
	c.state = to
	c.reason = reason
	observability.OfferOutcomes.WithLabelValues(to.String(), reason).Inc()
	observability.OfferDecisionLatency.Observe(c.now().Sub(c.presentedAt).Seconds())

	ev := c.eventLocked(models.EventState)
	if trip != nil {
		t := *trip
		ev.Trip = &t
		p := t.FinalPrice
		ev.Price = &p
	}
	offerID := c.offer.ID
	fx.add(func() { c.stopAlert(offerID) })
	c.emit(fx, ev)
}

func (c *Controller) stopTimersLocked() {
	c.gen++
	stopTimer(c.countdown)
	stopTimer(c.response)
	c.countdown, c.response = nil, nil
}

func (c *Controller) invalidLocked(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, c.state)
}

func (c *Controller) eventLocked(kind models.OfferEventKind) models.OfferEvent {
	ev := models.OfferEvent{
		ID:               uuid.NewString(),
		Kind:             kind,
		State:            c.state.String(),
		Reason:           c.reason,
		RemainingSeconds: c.remaining,
		At:               c.now(),
	}
	if c.offer != nil {
		ev.OfferID = c.offer.ID
		if kind != models.EventTrip {
			p := c.offer.BasePrice
			ev.Price = &p
			ev.PriceRange = c.priceRange(p)
		}
	}
	if c.attempt != nil && kind != models.EventTrip {
		a := *c.attempt
		ev.Attempt = &a
	}
	return ev
}

func (c *Controller) emit(fx *effects, ev models.OfferEvent) {
	if c.listener == nil {
		return
	}
	l := c.listener
	fx.add(func() { l.OfferEvent(ev) })
}

func (c *Controller) playAlert(o models.Offer) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AlertTimeout)
	defer cancel()
	if err := c.notifier.PlayAlert(ctx, o); err != nil {
		observability.AlertFailures.Inc()
		c.logger.Warn("play alert failed", "offer_id", o.ID, "error", err)
	}
}

func (c *Controller) stopAlert(offerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AlertTimeout)
	defer cancel()
	if err := c.notifier.StopAlert(ctx, offerID); err != nil {
		observability.AlertFailures.Inc()
		c.logger.Warn("stop alert failed", "offer_id", offerID, "error", err)
	}
}

func seconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

type nopNotifier struct{}

func (nopNotifier) PlayAlert(context.Context, models.Offer) error { return nil }
func (nopNotifier) StopAlert(context.Context, string) error { return nil }
