package negotiation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		proposed string
		want     models.NegotiationOutcome
	}{
		{name: "at base", base: "75", proposed: "75", want: models.OutcomeAccepted},
		{name: "upper bound inclusive", base: "75", proposed: "90", want: models.OutcomeAccepted},
		{name: "lower bound inclusive", base: "75", proposed: "60", want: models.OutcomeAccepted},
		{name: "just above upper", base: "75", proposed: "90.01", want: models.OutcomeRejected},
		{name: "just below lower", base: "75", proposed: "59.99", want: models.OutcomeRejected},
		{name: "far above", base: "75", proposed: "200", want: models.OutcomeRejected},
		{name: "cents inside band", base: "85", proposed: "101.99", want: models.OutcomeAccepted},
		{name: "upper bound with cents", base: "85.50", proposed: "102.60", want: models.OutcomeAccepted},
		{name: "lower bound with cents", base: "85.50", proposed: "68.40", want: models.OutcomeAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(d(tt.base), d(tt.proposed))
			if got.Outcome != tt.want {
				t.Fatalf("Evaluate(%s, %s) = %s, want %s", tt.base, tt.proposed, got.Outcome, tt.want)
			}
			if got.Accepted() && !got.FinalPrice.Equal(d(tt.proposed)) {
				t.Fatalf("final price = %s, want %s", got.FinalPrice, tt.proposed)
			}
			if !got.Accepted() && !got.FinalPrice.IsZero() {
				t.Fatalf("rejected result carries price %s", got.FinalPrice)
			}
		})
	}
}

func TestEvaluateSweep(t *testing.T) {
	for _, b := range []string{"1", "42.10", "75", "85", "650", "1234.56"} {
		base := d(b)
		lo, hi := DefaultBand().Bounds(base)
		step := base.Div(decimal.NewFromInt(100))
		for p := lo; p.LessThanOrEqual(hi); p = p.Add(step) {
			if r := Evaluate(base, p); !r.Accepted() || !r.FinalPrice.Equal(p) {
				t.Fatalf("base %s proposed %s: got %+v", base, p, r)
			}
		}
		if Evaluate(base, lo.Sub(step)).Accepted() {
			t.Fatalf("base %s: below band accepted", base)
		}
		if Evaluate(base, hi.Add(step)).Accepted() {
			t.Fatalf("base %s: above band accepted", base)
		}
	}
}

func TestParsePrice(t *testing.T) {
	base := d("75")
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"$90", "90", true},
		{"90", "90", true},
		{" $ 87.5 ", "87.5", true},
		{"87.555", "87.56", true},
		{"", "75", false},
		{"$", "75", false},
		{"ninety", "75", false},
		{"-5", "75", false},
		{"0", "75", false},
		{"$1,000", "75", false},
		{"90$", "90", true},
		{"1e2", "100", true},
		{"0.004", "75", false},
		{"$0.004", "75", false},
		{"0.005", "0.01", true},
		{"1e99999999", "75", false},
		{"$1e-9999999", "75", false},
		{"123456789012345678901234567890123", "75", false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in, base)
		if ok != tt.wantOK || !got.Equal(d(tt.want)) {
			t.Errorf("ParsePrice(%q) = %s,%v want %s,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParsePriceHugeExponentIsFast(t *testing.T) {
	start := time.Now()
	for _, in := range []string{"1e99999999", "-1e99999999", "1E-99999999"} {
		if _, ok := ParsePrice(in, d("75")); ok {
			t.Fatalf("ParsePrice(%q) accepted", in)
		}
	}
	if el := time.Since(start); el > 100*time.Millisecond {
		t.Fatalf("huge exponents took %s", el)
	}
}

func TestValidAmount(t *testing.T) {
	for in, want := range map[string]bool{"85": true, "0.01": true, "0": false, "-1": false, "1e9": false, "1e-9": false} {
		if got := ValidAmount(d(in)); got != want {
			t.Errorf("ValidAmount(%s) = %v, want %v", in, got, want)
		}
	}
}

func TestSimulatedCustomer(t *testing.T) {
	c := NewSimulatedCustomer(0, DefaultBand())
	if r := c.Respond(d("75"), d("90")); !r.Accepted() {
		t.Fatalf("expected accept, got %s", r.Outcome)
	}
	if r := c.Respond(d("75"), d("200")); r.Accepted() {
		t.Fatalf("expected reject")
	}
}
