package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/models"
)

func trip(id string, at time.Time) *models.Trip {
	return &models.Trip{ActiveTrip: models.ActiveTrip{ID: id, OfferID: "TT-" + id, FinalPrice: decimal.NewFromInt(85), Status: models.TripActive, AcceptedAt: at}}
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	m := NewMemoryStore()
	base := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := m.SaveTrip(trip(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	got, err := m.ListTrips()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "c" || got[2].ID != "a" {
		t.Fatalf("order = %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	m := NewMemoryStore()
	if err := m.UpdateTrip(trip("missing", time.Now())); !errors.Is(err, ErrTripNotFound) {
		t.Fatalf("expected ErrTripNotFound, got %v", err)
	}
	row := trip("a", time.Now())
	_ = m.SaveTrip(row)
	row.Status = models.TripCompleted
	if err := m.UpdateTrip(row); err != nil {
		t.Fatal(err)
	}
	if got, ok := m.Get("a"); !ok || got.Status != models.TripCompleted {
		t.Fatalf("row = %+v", got)
	}
}
