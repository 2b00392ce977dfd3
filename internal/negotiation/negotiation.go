package negotiation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/models"
)

// CurrencyPlaces is the precision prices are kept at.
const CurrencyPlaces = 2

var (
	DefaultLower = decimal.RequireFromString("0.8")
	DefaultUpper = decimal.RequireFromString("1.2")
)

// Result is the customer's answer to a counter-offer.
type Result struct {
	Outcome    models.NegotiationOutcome
	FinalPrice decimal.Decimal // set only when Outcome is accepted
}

func (r Result) Accepted() bool { return r.Outcome == models.OutcomeAccepted }

// Band is the inclusive acceptance range expressed as ratios of the base price.
type Band struct {
	Lower decimal.Decimal
	Upper decimal.Decimal
}

func DefaultBand() Band { return Band{Lower: DefaultLower, Upper: DefaultUpper} }

// Bounds returns the absolute price range for base.
func (b Band) Bounds(base decimal.Decimal) (lo, hi decimal.Decimal) {
	return base.Mul(b.Lower), base.Mul(b.Upper)
}

func (b Band) Evaluate(base, proposed decimal.Decimal) Result {
	lo, hi := b.Bounds(base)
	if proposed.LessThan(lo) || proposed.GreaterThan(hi) {
		return Result{Outcome: models.OutcomeRejected}
	}
	return Result{Outcome: models.OutcomeAccepted, FinalPrice: proposed}
}

// Evaluate applies the default 0.8..1.2 band.
func Evaluate(base, proposed decimal.Decimal) Result {
	return DefaultBand().Evaluate(base, proposed)
}

// Typed prices longer than maxPriceText or with an exponent outside
// [-maxExponent, maxExponent] are treated as unparseable. Rounding a value like
// 1e99999999 would otherwise take seconds.
const (
	maxPriceText = 32
	maxExponent  = 8
)

// ValidAmount reports whether d is a positive amount small enough to do
// arithmetic on cheaply.
func ValidAmount(d decimal.Decimal) bool {
	e := d.Exponent()
	if e < -maxExponent || e > maxExponent {
		return false
	}
	return d.IsPositive() && d.Coefficient().BitLen() <= 128
}

// ParsePrice reads a counter-offer typed by the driver, e.g. "$90", "90$" or " 87.50 ".
// Every "$" is dropped. Anything unparseable, out of range or not positive after
// rounding to cents yields fallback and ok=false.
func ParsePrice(text string, fallback decimal.Decimal) (price decimal.Decimal, ok bool) {
	s := strings.TrimSpace(strings.ReplaceAll(text, "$", ""))
	if s == "" || len(s) > maxPriceText {
		return fallback, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !ValidAmount(d) {
		return fallback, false
	}
	d = d.Round(CurrencyPlaces)
	if !d.IsPositive() {
		return fallback, false
	}
	return d, true
}

// SimulatedCustomer stands in for the customer side: it waits Think and then
// answers using Band.
type SimulatedCustomer struct {
	Think time.Duration
	Band  Band
}

func NewSimulatedCustomer(think time.Duration, band Band) *SimulatedCustomer {
	return &SimulatedCustomer{Think: think, Band: band}
}

func (c *SimulatedCustomer) Delay() time.Duration { return c.Think }

// Bounds is the range the customer accepts for base.
func (c *SimulatedCustomer) Bounds(base decimal.Decimal) (lo, hi decimal.Decimal) {
	return c.Band.Bounds(base)
}

func (c *SimulatedCustomer) Respond(base, proposed decimal.Decimal) Result {
	return c.Band.Evaluate(base, proposed)
}
