package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"math"
	"net/http"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// fetchMatrix retrieves distance and duration from every source to every
// destination with one call to the OpenRouteService matrix endpoint.
// Points present in both lists are sent once.
func (o *ORSProvider) fetchMatrix(
	ctx context.Context,
	sources []domain.Coordinates,
	destinations []domain.Coordinates,
) (ports.Matrix, error) {
	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	index := make(map[string]int, len(sources)+len(destinations))
	locations := make([][]float64, 0, len(sources)+len(destinations))
	locate := func(c domain.Coordinates) int {
		if i, ok := index[c.Key()]; ok {
			return i
		}
		index[c.Key()] = len(locations)
		locations = append(locations, c.CoordsToList())
		return len(locations) - 1
	}

	srcIdx := make([]int, 0, len(sources))
	for _, c := range sources {
		srcIdx = append(srcIdx, locate(c))
	}
	dstIdx := make([]int, 0, len(destinations))
	for _, c := range destinations {
		dstIdx = append(dstIdx, locate(c))
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      srcIdx,
		Destinations: dstIdx,
		Metrics:      []string{"distance", "duration"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != len(sources) || len(mr.Durations) != len(sources) {
		return nil, fmt.Errorf(
			"expected %d source rows; got distances=%d durations=%d",
			len(sources), len(mr.Distances), len(mr.Durations),
		)
	}

	out := make(ports.Matrix, len(sources))
	for i := range sources {
		rowDistances, rowDurations := mr.Distances[i], mr.Durations[i]
		if len(rowDistances) != len(destinations) || len(rowDurations) != len(destinations) {
			return nil, fmt.Errorf(
				"row %d lengths do not match destinations: distances=%d durations=%d destinations=%d",
				i, len(rowDistances), len(rowDurations), len(destinations),
			)
		}

		out[i] = make([]ports.DistanceResult, len(destinations))
		for j := range destinations {
			meters, seconds := rowDistances[j], rowDurations[j]
			// ORS reports unroutable pairs as null.
			if meters == nil || seconds == nil {
				return nil, fmt.Errorf("matrix has no route from %s to %s", sources[i].Key(), destinations[j].Key())
			}
			out[i][j] = ports.DistanceResult{
				DistanceMeters:  int(math.Round(*meters)),
				DurationSeconds: int(math.Round(*seconds)),
			}
		}
	}

	return out, nil
}
