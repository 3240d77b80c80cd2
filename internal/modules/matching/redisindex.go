// README: Trip-origin geo index backed by Redis GEO.
package matching

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

const tripGeoKey = "matching:trip_origins"

// RedisIndex keeps trip origins in a Redis GEO set. Entries are added when a
// trip opens and removed when it leaves the active state; a crashed process
// can leave stale members behind, which the matcher tolerates by re-reading
// trip state on every hit.
type RedisIndex struct {
	redis *redis.Client
}

func NewRedisIndex(redis *redis.Client) *RedisIndex {
	return &RedisIndex{redis: redis}
}

func (s *RedisIndex) AddTrip(ctx context.Context, tripID types.ID, origin types.Point) error {
	return s.redis.GeoAdd(ctx, tripGeoKey, &redis.GeoLocation{
		Name:      string(tripID),
		Longitude: origin.Lng,
		Latitude:  origin.Lat,
	}).Err()
}

func (s *RedisIndex) RemoveTrip(ctx context.Context, tripID types.ID) error {
	return s.redis.ZRem(ctx, tripGeoKey, string(tripID)).Err()
}

func (s *RedisIndex) NearbyTripIDs(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, tripGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
