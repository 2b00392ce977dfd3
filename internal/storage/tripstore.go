package storage

import (
	"errors"
	"sort"
	"sync"

	"github.com/example/tow-dispatch/internal/models"
)

var ErrTripNotFound = errors.New("trip not found")

// TripStore defines persistence operations for trip history.
type TripStore interface {
	SaveTrip(t *models.Trip) error
	UpdateTrip(t *models.Trip) error
	ListTrips() ([]models.Trip, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	trips map[string]models.Trip
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[string]models.Trip)}
}

func (m *MemoryStore) SaveTrip(t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = *t
	return nil
}

func (m *MemoryStore) UpdateTrip(t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[t.ID]; !ok {
		return ErrTripNotFound
	}
	m.trips[t.ID] = *t
	return nil
}

// ListTrips returns history newest first.
func (m *MemoryStore) ListTrips() ([]models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcceptedAt.After(out[j].AcceptedAt) })
	return out, nil
}

func (m *MemoryStore) Get(id string) (models.Trip, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	return t, ok
}
