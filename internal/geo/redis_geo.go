package geo

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/tow-dispatch/internal/models"
)

// RedisUpdater is the subset of redis operations the location store needs.
type RedisUpdater interface {
	GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error
	HSet(ctx context.Context, key string, values map[string]interface{}) error
}

type redisAdapter struct{ c *redis.Client }

func NewRedisAdapter(c *redis.Client) RedisUpdater { return &redisAdapter{c: c} }

func (r *redisAdapter) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	_, err := r.c.GeoAdd(ctx, key, loc).Result()
	return err
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := r.c.HSet(ctx, key, values).Result()
	return err
}

// LocationStore keeps the last known position of each driver in a Redis GEO set
// with a metadata hash next to it.
type LocationStore struct {
	rc  RedisUpdater
	key string
}

func NewLocationStore(rc RedisUpdater, key string) *LocationStore {
	if key == "" {
		key = "drivers_geo"
	}
	return &LocationStore{rc: rc, key: key}
}

func (s *LocationStore) Save(ctx context.Context, u models.LocationUpdate) error {
	if err := s.rc.GeoAdd(ctx, s.key, &redis.GeoLocation{Longitude: u.Longitude, Latitude: u.Latitude, Name: u.DriverID}); err != nil {
		return err
	}
	return s.rc.HSet(ctx, MetaKey(u.DriverID), map[string]interface{}{"updated_ms": strconv.FormatInt(u.Timestamp, 10)})
}

func MetaKey(id string) string { return "driver:meta:" + id }
