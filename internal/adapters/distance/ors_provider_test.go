package distance

import (
	"context"
	"encoding/json"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/ports"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memGeocodeCache struct {
	mu sync.Mutex
	m  map[string]domain.Coordinates
}

func (c *memGeocodeCache) GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]domain.Coordinates{}
	for _, a := range addresses {
		if v, ok := c.m[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *memGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range results {
		c.m[k] = v
	}
	return nil
}

type memDistanceCache struct {
	mu sync.Mutex
	m  map[string]ports.DistanceResult
}

func (c *memDistanceCache) GetMany(ctx context.Context, origin string, destinations []string) (map[string]ports.DistanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]ports.DistanceResult{}
	for _, d := range destinations {
		if v, ok := c.m[origin+"|"+d]; ok {
			out[d] = v
		}
	}
	return out, nil
}

func (c *memDistanceCache) PutMany(ctx context.Context, origin string, results map[string]ports.DistanceResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for d, v := range results {
		c.m[origin+"|"+d] = v
	}
	return nil
}

func newTestProvider(t *testing.T, h http.Handler) (*ORSProvider, *memGeocodeCache, *memDistanceCache) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	gc := &memGeocodeCache{m: map[string]domain.Coordinates{}}
	dc := &memDistanceCache{m: map[string]ports.DistanceResult{}}
	p, err := NewORSProvider(ORSConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second}, gc, dc)
	require.NoError(t, err)
	p.backoff = time.Millisecond
	return p, gc, dc
}

func TestNewORSProviderRequiresKey(t *testing.T) {
	_, err := NewORSProvider(ORSConfig{APIKey: "  "}, nil, nil)
	require.Error(t, err)
}

func TestORSResolve(t *testing.T) {
	var hits atomic.Int32
	p, gc, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		if r.URL.Query().Get("text") == "Nowhere Lane" {
			_, _ = w.Write([]byte(`{"features":[]}`))
			return
		}
		assert.Equal(t, "1 Main St Springfield", r.URL.Query().Get("text"))
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-122.5,37.25]}}]}`))
	}))
	ctx := context.Background()

	c, err := p.Resolve(ctx, "  1 Main St   Springfield ")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lon: -122.5, Lat: 37.25}, c)
	assert.Equal(t, c, gc.m["1 Main St Springfield"])

	again, err := p.Resolve(ctx, "1 Main St Springfield")
	require.NoError(t, err)
	assert.Equal(t, c, again)
	assert.Equal(t, int32(1), hits.Load(), "second lookup is served from cache")

	_, err = p.Resolve(ctx, "Nowhere Lane")
	require.ErrorIs(t, err, domain.ErrAddressNotFound)

	_, err = p.Resolve(ctx, domain.NoFixedAddress)
	require.ErrorIs(t, err, domain.ErrAddressNotFound)
	assert.Equal(t, int32(2), hits.Load())
}

func TestORSResolveSharedLookupSurvivesCancelledCaller(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	p, _, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[3,4]}}]}`))
	}))

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := p.Resolve(ctxA, "Depot")
		errA <- err
	}()
	<-arrived

	type result struct {
		c   domain.Coordinates
		err error
	}
	resB := make(chan result, 1)
	go func() {
		c, err := p.Resolve(context.Background(), "Depot")
		resB <- result{c, err}
	}()
	// Let the second caller join the in-flight lookup.
	time.Sleep(50 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, domain.Coordinates{Lon: 3, Lat: 4}, b.c)
	assert.Equal(t, int32(1), hits.Load())
}

func TestORSRetry(t *testing.T) {
	t.Run("transient failures are retried", func(t *testing.T) {
		var hits atomic.Int32
		p, _, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) <= 2 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[1,2]}}]}`))
		}))

		c, err := p.Resolve(context.Background(), "Depot")
		require.NoError(t, err)
		assert.Equal(t, domain.Coordinates{Lon: 1, Lat: 2}, c)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var hits atomic.Int32
		p, _, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "bad key", http.StatusForbidden)
		}))

		_, err := p.Resolve(context.Background(), "Depot")
		require.ErrorIs(t, err, domain.ErrAdapterUnavailable)
		assert.ErrorContains(t, err, "bad key")
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var hits atomic.Int32
		p, _, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}))

		_, err := p.Resolve(context.Background(), "Depot")
		require.ErrorIs(t, err, domain.ErrAdapterUnavailable)
		assert.Equal(t, int32(4), hits.Load())
	})
}

// manhattan answers matrix requests with 1000m per degree of Manhattan distance.
func manhattan(t *testing.T, hits *atomic.Int32, last *matrixRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v2/matrix/driving-car", r.URL.Path)

		var req matrixRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		*last = req

		var resp matrixResponse
		for _, s := range req.Sources {
			var dist, dur []*float64
			for _, d := range req.Destinations {
				a, b := req.Locations[s], req.Locations[d]
				m := (math.Abs(a[0]-b[0]) + math.Abs(a[1]-b[1])) * 1000
				sec := m / 10
				dist = append(dist, &m)
				dur = append(dur, &sec)
			}
			resp.Distances = append(resp.Distances, dist)
			resp.Durations = append(resp.Durations, dur)
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestORSQuery(t *testing.T) {
	var hits atomic.Int32
	var last matrixRequest
	p, _, dc := newTestProvider(t, manhattan(t, &hits, &last))
	ctx := context.Background()

	a := domain.Coordinates{Lon: 0, Lat: 0}
	b := domain.Coordinates{Lon: 1, Lat: 0}
	c := domain.Coordinates{Lon: 1, Lat: 2}
	points := []domain.Coordinates{a, b, c}

	m, err := p.Query(ctx, points, points)
	require.NoError(t, err)
	assert.Equal(t, ports.Matrix{
		{{0, 0}, {1000, 100}, {3000, 300}},
		{{1000, 100}, {0, 0}, {2000, 200}},
		{{3000, 300}, {2000, 200}, {0, 0}},
	}, m)
	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, last.Locations, 3, "shared points are sent once")
	assert.Len(t, dc.m, 6, "self pairs are not cached")

	again, err := p.Query(ctx, points, points)
	require.NoError(t, err)
	assert.Equal(t, m, again)
	assert.Equal(t, int32(1), hits.Load(), "fully cached query makes no request")

	// Only the new destination is fetched.
	d := domain.Coordinates{Lon: 3, Lat: 3}
	row, err := p.Query(ctx, []domain.Coordinates{a}, []domain.Coordinates{b, d})
	require.NoError(t, err)
	assert.Equal(t, ports.Matrix{{{1000, 100}, {6000, 600}}}, row)
	assert.Equal(t, int32(2), hits.Load())
	assert.Len(t, last.Destinations, 1)
}

func TestORSQueryUnroutablePair(t *testing.T) {
	p, _, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"distances":[[null]],"durations":[[null]]}`))
	}))

	_, err := p.Query(context.Background(),
		[]domain.Coordinates{{Lon: 0, Lat: 0}},
		[]domain.Coordinates{{Lon: 5, Lat: 5}},
	)
	require.ErrorIs(t, err, domain.ErrAdapterUnavailable)
}

func TestORSQueryEmpty(t *testing.T) {
	p, _, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))

	m, err := p.Query(context.Background(), nil, []domain.Coordinates{{Lon: 1}})
	require.NoError(t, err)
	assert.Empty(t, m)
}
