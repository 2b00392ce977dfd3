package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/models"
	"github.com/example/tow-dispatch/internal/storage"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed() models.Earnings {
	return models.Earnings{Daily: d("1250"), Weekly: d("4850"), Monthly: d("18200")}
}

func towOffer(base string) models.Offer {
	return models.Offer{ID: "TT-2024-001", PickupAddress: "I-90 Exit 15, Chicago", DropoffAddress: "Shell Station, Main St", BasePrice: d(base)}
}

// failingStore rejects every write.
type failingStore struct{ calls int }

func (f *failingStore) SaveTrip(*models.Trip) error { f.calls++; return errors.New("db down") }
func (f *failingStore) UpdateTrip(*models.Trip) error { f.calls++; return errors.New("db down") }
func (f *failingStore) ListTrips() ([]models.Trip, error) { return nil, errors.New("db down") }

func TestAcceptCreditsAndMarksBusy(t *testing.T) {
	l := New(seed(), nil, nil)
	trip, err := l.AcceptOffer(towOffer("85"), d("85"))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !trip.FinalPrice.Equal(d("85")) || trip.Status != models.TripActive {
		t.Fatalf("unexpected trip %+v", trip)
	}
	if trip.Negotiated {
		t.Fatalf("base price accept flagged as negotiated")
	}
	if got := l.Earnings().Daily; !got.Equal(d("1335")) {
		t.Fatalf("daily = %s, want 1335", got)
	}
	if l.Availability() != models.Busy {
		t.Fatalf("expected busy")
	}
	if active, ok := l.ActiveTrip(); !ok || active.ID != trip.ID {
		t.Fatalf("active trip not exposed")
	}
}

func TestSecondAcceptFails(t *testing.T) {
	l := New(seed(), nil, nil)
	if _, err := l.AcceptOffer(towOffer("85"), d("85")); err != nil {
		t.Fatal(err)
	}
	before := l.Earnings()
	if _, err := l.AcceptOffer(towOffer("75"), d("75")); !errors.Is(err, ErrTripActive) {
		t.Fatalf("expected ErrTripActive, got %v", err)
	}
	if !l.Earnings().Daily.Equal(before.Daily) {
		t.Fatalf("rejected accept changed earnings")
	}
}

func TestAcceptThenCancelRestoresEarnings(t *testing.T) {
	for _, price := range []string{"85", "90", "87.33", "0.01", "1234.99"} {
		store := storage.NewMemoryStore()
		l := New(seed(), store, nil)
		before := l.Earnings()
		trip, err := l.AcceptOffer(towOffer("85"), d(price))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.CancelActiveTrip(); err != nil {
			t.Fatal(err)
		}
		after := l.Earnings()
		if !after.Daily.Equal(before.Daily) || !after.Weekly.Equal(before.Weekly) || !after.Monthly.Equal(before.Monthly) {
			t.Fatalf("price %s: earnings drifted %+v -> %+v", price, before, after)
		}
		if l.HasActiveTrip() || l.Availability() != models.Available {
			t.Fatalf("trip not cleared")
		}
		row, ok := store.Get(trip.ID)
		if !ok || row.Status != models.TripCancelled {
			t.Fatalf("history row = %+v, %v", row, ok)
		}
	}
}

func TestCancelWithoutTrip(t *testing.T) {
	l := New(seed(), nil, nil)
	if _, err := l.CancelActiveTrip(); !errors.Is(err, ErrNoActiveTrip) {
		t.Fatalf("expected ErrNoActiveTrip, got %v", err)
	}
	if _, err := l.CompleteActiveTrip(); !errors.Is(err, ErrNoActiveTrip) {
		t.Fatalf("expected ErrNoActiveTrip, got %v", err)
	}
}

func TestCompleteKeepsEarnings(t *testing.T) {
	store := storage.NewMemoryStore()
	l := New(seed(), store, nil)
	if _, err := l.AcceptOffer(towOffer("75"), d("90")); err != nil {
		t.Fatal(err)
	}
	credited := l.Earnings()
	trip, err := l.CompleteActiveTrip()
	if err != nil {
		t.Fatal(err)
	}
	if trip.Status != models.TripCompleted || trip.CompletedAt == nil || !trip.Negotiated {
		t.Fatalf("unexpected completed trip %+v", trip)
	}
	if !l.Earnings().Daily.Equal(credited.Daily) {
		t.Fatalf("completion changed earnings")
	}
	if l.Availability() != models.Available {
		t.Fatalf("expected available after completion")
	}
	hist, _ := l.History()
	if len(hist) != 1 || hist[0].Status != models.TripCompleted {
		t.Fatalf("history = %+v", hist)
	}
	// a new job can be taken once the previous one is done
	if _, err := l.AcceptOffer(towOffer("85"), d("85")); err != nil {
		t.Fatalf("accept after completion: %v", err)
	}
}

func TestRejectsNonPositivePrice(t *testing.T) {
	l := New(seed(), nil, nil)
	if _, err := l.AcceptOffer(towOffer("85"), decimal.Zero); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestStoreFailureDoesNotUndoState(t *testing.T) {
	fs := &failingStore{}
	l := New(seed(), fs, nil)
	if _, err := l.AcceptOffer(towOffer("85"), d("85")); err != nil {
		t.Fatalf("accept should not surface store errors: %v", err)
	}
	if !l.HasActiveTrip() {
		t.Fatalf("trip lost after store failure")
	}
	if _, err := l.CancelActiveTrip(); err != nil {
		t.Fatal(err)
	}
	if fs.calls != 2 {
		t.Fatalf("expected 2 store writes, got %d", fs.calls)
	}
}
