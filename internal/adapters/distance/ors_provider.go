package distance

import (
	"context"
	"errors"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/obs"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

type ORSConfig struct {
	APIKey  string
	BaseURL string
	Profile string
	Timeout time.Duration
	// BoundaryCountry restricts geocoding to one ISO country code; empty searches worldwide.
	BoundaryCountry string
}

// ORSProvider implements GeoLookup and TravelMatrix using OpenRouteService.
//
// It coordinates:
//   - Address normalization
//   - Persistent geocode caching
//   - Persistent travel caching keyed by coordinates
//   - External API calls with retry/backoff
//
// The provider is safe for concurrent use. Cache failures are logged and
// treated as misses.
type ORSProvider struct {
	session       *http.Client
	apiKey        string
	baseURL       string
	profile       string
	country       string
	backoff       time.Duration
	maxAttempts   int
	geocodeCache  ports.GeocodeCache
	distanceCache ports.DistanceCache
	inflight      singleflight.Group
}

var (
	_ ports.GeoLookup    = (*ORSProvider)(nil)
	_ ports.TravelMatrix = (*ORSProvider)(nil)
)

// NewORSProvider builds a provider; either cache may be nil.
func NewORSProvider(
	cfg ORSConfig,
	geocodeCache ports.GeocodeCache,
	distanceCache ports.DistanceCache,
) (*ORSProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	profile := cfg.Profile
	if profile == "" {
		profile = "driving-car"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ORSProvider{
		session:       &http.Client{Timeout: timeout},
		apiKey:        cfg.APIKey,
		baseURL:       baseURL,
		profile:       profile,
		country:       cfg.BoundaryCountry,
		backoff:       200 * time.Millisecond,
		maxAttempts:   4,
		geocodeCache:  geocodeCache,
		distanceCache: distanceCache,
	}, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Resolve geocodes a single address, consulting the geocode cache first.
// Concurrent lookups of the same address share one request.
func (o *ORSProvider) Resolve(ctx context.Context, address string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Resolve")(&err)

	norm := normalize(address)
	if norm == "" || norm == domain.NoFixedAddress {
		return domain.Coordinates{}, fmt.Errorf("resolve %q: %w", address, domain.ErrAddressNotFound)
	}

	if o.geocodeCache != nil {
		hits, err := o.geocodeCache.GetMany(ctx, []string{norm})
		if err != nil {
			log.Printf("geocode cache read failed: address=%q err=%v", norm, err)
		} else if c, ok := hits[norm]; ok {
			return c, nil
		}
	}

	// The shared request outlives any single caller; each caller stops
	// waiting on its own cancellation. The client timeout bounds the request.
	ch := o.inflight.DoChan(norm, func() (any, error) {
		return o.geocode(context.WithoutCancel(ctx), norm)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return domain.Coordinates{}, fmt.Errorf("resolve %q: %w", norm, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return domain.Coordinates{}, fmt.Errorf("resolve %q: %w", norm, res.Err)
	}
	c := res.Val.(domain.Coordinates)

	if o.geocodeCache != nil {
		if err := o.geocodeCache.PutMany(ctx, map[string]domain.Coordinates{norm: c}); err != nil {
			log.Printf("geocode cache write failed: address=%q err=%v", norm, err)
		}
	}

	return c, nil
}

// Query returns the travel matrix from every origin to every destination.
//
// Cached pairs are served from the distance cache; the remaining pairs are
// fetched with a single matrix request and written back. A point to itself is
// always zero.
func (o *ORSProvider) Query(
	ctx context.Context,
	origins []domain.Coordinates,
	destinations []domain.Coordinates,
) (_ ports.Matrix, err error) {
	defer obs.Time(ctx, "ors.Query")(&err)

	out := make(ports.Matrix, len(origins))
	for i := range out {
		out[i] = make([]ports.DistanceResult, len(destinations))
	}
	if len(origins) == 0 || len(destinations) == 0 {
		return out, nil
	}

	srcs := uniqueByKey(origins)
	dsts := uniqueByKey(destinations)
	dstKeys := make([]string, 0, len(dsts))
	for _, d := range dsts {
		dstKeys = append(dstKeys, d.Key())
	}

	known := make(map[string]map[string]ports.DistanceResult, len(srcs))
	var missSrc []domain.Coordinates
	missDst := make(map[string]domain.Coordinates)

	for _, s := range srcs {
		sk := s.Key()

		hits := map[string]ports.DistanceResult{}
		if o.distanceCache != nil {
			cached, err := o.distanceCache.GetMany(ctx, sk, dstKeys)
			if err != nil {
				log.Printf("distance cache read failed: origin=%s err=%v", sk, err)
			} else {
				hits = cached
			}
		}

		row := make(map[string]ports.DistanceResult, len(dsts))
		missed := false
		for _, d := range dsts {
			dk := d.Key()
			if dk == sk {
				row[dk] = ports.DistanceResult{}
				continue
			}
			if r, ok := hits[dk]; ok {
				row[dk] = r
				continue
			}
			missed = true
			missDst[dk] = d
		}
		known[sk] = row
		if missed {
			missSrc = append(missSrc, s)
		}
	}

	if len(missSrc) > 0 {
		fetchDst := make([]domain.Coordinates, 0, len(missDst))
		for _, d := range dsts {
			if _, ok := missDst[d.Key()]; ok {
				fetchDst = append(fetchDst, d)
			}
		}

		fetched, err := o.fetchMatrix(ctx, missSrc, fetchDst)
		if err != nil {
			return nil, fmt.Errorf("ORS matrix: %w: %w", domain.ErrAdapterUnavailable, err)
		}

		for i, s := range missSrc {
			sk := s.Key()
			fresh := make(map[string]ports.DistanceResult, len(fetchDst))
			for j, d := range fetchDst {
				dk := d.Key()
				if dk == sk {
					continue
				}
				known[sk][dk] = fetched[i][j]
				fresh[dk] = fetched[i][j]
			}

			if o.distanceCache != nil && len(fresh) > 0 {
				if err := o.distanceCache.PutMany(ctx, sk, fresh); err != nil {
					log.Printf("distance cache write failed: origin=%s err=%v", sk, err)
				}
			}
		}
	}

	for i, s := range origins {
		row := known[s.Key()]
		for j, d := range destinations {
			out[i][j] = row[d.Key()]
		}
	}
	return out, nil
}

func uniqueByKey(points []domain.Coordinates) []domain.Coordinates {
	seen := make(map[string]struct{}, len(points))
	out := make([]domain.Coordinates, 0, len(points))
	for _, p := range points {
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
