package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/obs"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fleetseq"

func geocodeKey(address string) string {
	return keyPrefix + ":geocode:" + address
}

func distanceKey(origin string) string {
	return keyPrefix + ":distance:" + origin
}

type redisCoords struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type redisTravel struct {
	Meters  int `json:"m"`
	Seconds int `json:"s"`
}

// RedisGeocodeCache keeps address -> coordinate mappings in Redis.
// Entries expire after ttl; zero keeps them forever.
type RedisGeocodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.GeocodeCache = (*RedisGeocodeCache)(nil)

func NewRedisGeocodeCache(client *redis.Client, ttl time.Duration) *RedisGeocodeCache {
	return &RedisGeocodeCache{client: client, ttl: ttl}
}

func (r *RedisGeocodeCache) GetMany(ctx context.Context, addresses []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.redis.GetMany")(&err)

	uniq := uniqueKeys(addresses)
	out := make(map[string]domain.Coordinates, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(uniq))
	for _, a := range uniq {
		keys = append(keys, geocodeKey(a))
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get geocode redis: mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var c redisCoords
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return nil, fmt.Errorf("get geocode redis: decode %q: %w", uniq[i], err)
		}
		out[uniq[i]] = domain.Coordinates{Lon: c.Lon, Lat: c.Lat}
	}
	return out, nil
}

func (r *RedisGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	if len(results) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for addr, c := range results {
		if strings.TrimSpace(addr) == "" {
			return errors.New("insert geocode redis: empty address key")
		}
		data, err := json.Marshal(redisCoords{Lon: c.Lon, Lat: c.Lat})
		if err != nil {
			return fmt.Errorf("insert geocode redis: encode %q: %w", addr, err)
		}
		pipe.Set(ctx, geocodeKey(addr), data, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert geocode redis: exec: %w", err)
	}
	return nil
}

// RedisDistanceCache stores one hash per origin, keyed by destination.
// The hash expiry is refreshed on every write.
type RedisDistanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.DistanceCache = (*RedisDistanceCache)(nil)

func NewRedisDistanceCache(client *redis.Client, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{client: client, ttl: ttl}
}

func (r *RedisDistanceCache) GetMany(ctx context.Context, origin string, destinations []string) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.redis.GetMany")(&err)

	if origin == "" {
		return nil, errors.New("get distance redis: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	out := make(map[string]ports.DistanceResult, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}

	vals, err := r.client.HMGet(ctx, distanceKey(origin), uniq...).Result()
	if err != nil {
		return nil, fmt.Errorf("get distance redis: hmget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var t redisTravel
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("get distance redis: decode %q: %w", uniq[i], err)
		}
		out[uniq[i]] = ports.DistanceResult{DistanceMeters: t.Meters, DurationSeconds: t.Seconds}
	}
	return out, nil
}

func (r *RedisDistanceCache) PutMany(ctx context.Context, origin string, results map[string]ports.DistanceResult) error {
	if origin == "" {
		return errors.New("insert distance redis: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	fields := make(map[string]any, len(results))
	for dest, res := range results {
		if strings.TrimSpace(dest) == "" {
			return errors.New("insert distance redis: empty destination key")
		}
		data, err := json.Marshal(redisTravel{Meters: res.DistanceMeters, Seconds: res.DurationSeconds})
		if err != nil {
			return fmt.Errorf("insert distance redis: encode %q: %w", dest, err)
		}
		fields[dest] = string(data)
	}

	key := distanceKey(origin)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert distance redis: exec: %w", err)
	}
	return nil
}
