package distance

import (
	"context"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"strings"
	"sync"
)

type MockPair struct {
	From, To domain.Coordinates
	Meters   int
	Seconds  int
}

// MockTravelMatrix answers matrix queries from a fixed set of pairs.
// Travel from a point to itself is zero; a missing pair is an error.
type MockTravelMatrix struct {
	m   map[string]ports.DistanceResult
	Err error
}

func NewMockTravelMatrix(pairs []MockPair) *MockTravelMatrix {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[p.From.Key()+"|"+p.To.Key()] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockTravelMatrix{m: m}
}

func (p *MockTravelMatrix) Query(ctx context.Context, origins, destinations []domain.Coordinates) (ports.Matrix, error) {
	if p.Err != nil {
		return nil, p.Err
	}

	out := make(ports.Matrix, len(origins))
	for i, o := range origins {
		out[i] = make([]ports.DistanceResult, len(destinations))
		for j, d := range destinations {
			if o == d {
				continue
			}
			r, ok := p.m[o.Key()+"|"+d.Key()]
			if !ok {
				return nil, fmt.Errorf("missing pair %s -> %s", o.Key(), d.Key())
			}
			out[i][j] = r
		}
	}
	return out, nil
}

// MockGeoLookup resolves addresses from a fixed table and counts lookups.
type MockGeoLookup struct {
	mu     sync.Mutex
	coords map[string]domain.Coordinates
	calls  map[string]int
	// Fail forces an error for the listed addresses.
	Fail map[string]error
}

func NewMockGeoLookup(coords map[string]domain.Coordinates) *MockGeoLookup {
	return &MockGeoLookup{coords: coords, calls: map[string]int{}, Fail: map[string]error{}}
}

func (g *MockGeoLookup) Resolve(ctx context.Context, address string) (domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	address = strings.TrimSpace(address)
	g.calls[address]++

	if err := g.Fail[address]; err != nil {
		return domain.Coordinates{}, err
	}
	c, ok := g.coords[address]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("mock geocode %q: %w", address, domain.ErrAddressNotFound)
	}
	return c, nil
}

// Calls returns how many times address was looked up.
func (g *MockGeoLookup) Calls(address string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[address]
}
