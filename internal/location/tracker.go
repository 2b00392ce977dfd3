package location

import (
	"sync"
	"time"

	"github.com/example/tow-dispatch/internal/models"
)

// Sink receives every fix; it must not block.
type Sink interface {
	Publish(u models.LocationUpdate)
}

// Tracker holds the driver's last known position and forwards each fix as telemetry.
type Tracker struct {
	driverID string
	sink     Sink
	now      func() time.Time

	mu        sync.RWMutex
	current   models.Coord
	updatedAt time.Time
	known     bool
}

func NewTracker(driverID string, sink Sink) *Tracker {
	return &Tracker{driverID: driverID, sink: sink, now: time.Now}
}

func (t *Tracker) Update(c models.Coord) models.LocationUpdate {
	now := t.now()
	t.mu.Lock()
	t.current, t.updatedAt, t.known = c, now, true
	t.mu.Unlock()

	u := models.LocationUpdate{DriverID: t.driverID, Latitude: c.Lat, Longitude: c.Lon, Timestamp: now.UnixMilli()}
	if t.sink != nil {
		t.sink.Publish(u)
	}
	return u
}

func (t *Tracker) Current() (models.Coord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.known
}

func (t *Tracker) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}
