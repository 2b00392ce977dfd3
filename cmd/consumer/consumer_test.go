package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/tow-dispatch/internal/geo"
	"github.com/example/tow-dispatch/internal/logging"
	"github.com/example/tow-dispatch/internal/models"
)

// fakeUpdater implements geo.RedisUpdater for tests
type fakeUpdater struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failH    int // number of times to fail HSet before succeeding
	geoCalls int
	hCalls   int
	lastKey  string
	lastLoc  redis.GeoLocation
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	f.lastKey, f.lastLoc = key, *loc
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	return nil
}

var fix = models.LocationUpdate{DriverID: "d1", Latitude: 41.8781, Longitude: -87.6298, Timestamp: 1704880800000}

func TestSaveWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failH: 1}
	store := geo.NewLocationStore(f, "")
	start := time.Now()
	if err := saveWithRetry(context.Background(), store, fix, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.lastKey != "drivers_geo" || f.lastLoc.Name != "d1" || f.lastLoc.Latitude != fix.Latitude {
		t.Fatalf("geoadd key=%q loc=%+v", f.lastKey, f.lastLoc)
	}
}

func TestSaveWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5}
	store := geo.NewLocationStore(f, "drivers_geo")
	if err := saveWithRetry(context.Background(), store, fix, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.geoCalls != 3 {
		t.Fatalf("geo calls = %d", f.geoCalls)
	}
}

func TestDecodeLocation(t *testing.T) {
	good, _ := json.Marshal(fix)
	if u, err := decodeLocation(good); err != nil || u != fix {
		t.Fatalf("decode = %+v, %v", u, err)
	}
	for _, bad := range []string{`nope`, `{"latitude":1,"longitude":2}`, `{"driver_id":"d1","latitude":91,"longitude":0}`} {
		if _, err := decodeLocation([]byte(bad)); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

// scriptedReader hands out messages and then blocks until ctx is cancelled.
type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (s *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(s.msgs) == 0 {
		s.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m, nil
}

type recordingSaver struct{ got []models.LocationUpdate }

func (r *recordingSaver) Save(_ context.Context, u models.LocationUpdate) error {
	r.got = append(r.got, u)
	return nil
}

func TestConsumeSkipsInvalidMessages(t *testing.T) {
	good, _ := json.Marshal(fix)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedReader{msgs: []kafka.Message{{Value: []byte("garbage")}, {Key: []byte("d1"), Value: good}}, cancel: cancel}
	s := &recordingSaver{}
	consume(ctx, r, s, logging.Discard())
	if len(s.got) != 1 || s.got[0] != fix {
		t.Fatalf("saved = %+v", s.got)
	}
}
