package cache

import (
	"context"
	"fleet-sequencing-service/internal/adapters/repositories"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/db"
	"fleet-sequencing-service/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLCaches(t *testing.T) (*SQLGeocodeCache, *SQLDistanceCache) {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, repositories.InitSchema(context.Background(), conn, db.SQLite))

	return NewSQLGeocodeCache(conn, db.SQLite), NewSQLDistanceCache(conn, db.SQLite)
}

func newRedisCaches(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisGeocodeCache, *RedisDistanceCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisGeocodeCache(client, ttl), NewRedisDistanceCache(client, ttl)
}

func exerciseGeocodeCache(t *testing.T, c ports.GeocodeCache) {
	ctx := context.Background()

	got, err := c.GetMany(ctx, []string{"1 Main St"})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
		"1 Main St": {Lon: -73.5, Lat: 40.25},
		"2 Main St": {Lon: 1, Lat: 2},
	}))
	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{"2 Main St": {Lon: 3, Lat: 4}}))

	got, err = c.GetMany(ctx, []string{"1 Main St", " 2 Main St ", "1 Main St", "", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Coordinates{
		"1 Main St": {Lon: -73.5, Lat: 40.25},
		"2 Main St": {Lon: 3, Lat: 4},
	}, got)

	require.Error(t, c.PutMany(ctx, map[string]domain.Coordinates{" ": {}}))
}

func exerciseDistanceCache(t *testing.T, c ports.DistanceCache) {
	ctx := context.Background()
	origin := domain.Coordinates{Lon: 0, Lat: 0}.Key()
	a := domain.Coordinates{Lon: 1, Lat: 0}.Key()
	b := domain.Coordinates{Lon: 0, Lat: 1}.Key()

	require.NoError(t, c.PutMany(ctx, origin, map[string]ports.DistanceResult{
		a: {DistanceMeters: 100, DurationSeconds: 20},
		b: {DistanceMeters: 50, DurationSeconds: 10},
	}))
	require.NoError(t, c.PutMany(ctx, origin, map[string]ports.DistanceResult{b: {DistanceMeters: 55, DurationSeconds: 11}}))

	got, err := c.GetMany(ctx, origin, []string{a, b, "9.000000,9.000000"})
	require.NoError(t, err)
	assert.Equal(t, map[string]ports.DistanceResult{
		a: {DistanceMeters: 100, DurationSeconds: 20},
		b: {DistanceMeters: 55, DurationSeconds: 11},
	}, got)

	other, err := c.GetMany(ctx, a, []string{origin})
	require.NoError(t, err)
	assert.Empty(t, other, "entries are directional")

	_, err = c.GetMany(ctx, "", []string{a})
	require.Error(t, err)
}

func TestSQLGeocodeCache(t *testing.T) {
	g, _ := newSQLCaches(t)
	exerciseGeocodeCache(t, g)
}

func TestSQLDistanceCache(t *testing.T) {
	_, d := newSQLCaches(t)
	exerciseDistanceCache(t, d)
}

func TestSQLCacheNilDB(t *testing.T) {
	_, err := (&SQLGeocodeCache{}).GetMany(context.Background(), []string{"x"})
	require.Error(t, err)
	require.Error(t, (&SQLDistanceCache{}).PutMany(context.Background(), "o", map[string]ports.DistanceResult{"d": {}}))
}

func TestRedisGeocodeCache(t *testing.T) {
	_, g, _ := newRedisCaches(t, 0)
	exerciseGeocodeCache(t, g)
}

func TestRedisDistanceCache(t *testing.T) {
	_, _, d := newRedisCaches(t, 0)
	exerciseDistanceCache(t, d)
}

func TestRedisCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mr, g, d := newRedisCaches(t, time.Hour)

	require.NoError(t, g.PutMany(ctx, map[string]domain.Coordinates{"1 Main St": {Lon: 1, Lat: 1}}))
	require.NoError(t, d.PutMany(ctx, "o", map[string]ports.DistanceResult{"d": {DistanceMeters: 1}}))
	assert.Equal(t, time.Hour, mr.TTL(geocodeKey("1 Main St")))
	assert.Equal(t, time.Hour, mr.TTL(distanceKey("o")))

	mr.FastForward(2 * time.Hour)

	got, err := g.GetMany(ctx, []string{"1 Main St"})
	require.NoError(t, err)
	assert.Empty(t, got)

	dist, err := d.GetMany(ctx, "o", []string{"d"})
	require.NoError(t, err)
	assert.Empty(t, dist)
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr, g, _ := newRedisCaches(t, 0)
	mr.Close()

	_, err := g.GetMany(context.Background(), []string{"1 Main St"})
	require.Error(t, err)
}
