package services

import (
	"errors"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"math"
)

// NearestNeighborOrder builds a visiting order with a greedy nearest-neighbor pass.
//
// Index 0 of the matrix is the start position; indexes 1..n-1 are the points to
// visit. Each step picks the unvisited point with the smallest driving distance
// from the current one. Ties go to the lowest index, so the result is
// deterministic for a given matrix. It does not attempt global optimization.
func NearestNeighborOrder(m ports.Matrix) ([]int, error) {
	if err := checkSquare(m); err != nil {
		return nil, fmt.Errorf("nearest neighbor: %w", err)
	}

	n := len(m)
	if n <= 1 {
		return []int{}, nil
	}

	visited := make([]bool, n)
	visited[0] = true
	order := make([]int, 0, n-1)
	current := 0

	for len(order) < n-1 {
		best := -1
		minDistance := math.MaxInt

		// Strict comparison keeps the first minimum encountered.
		for j := 1; j < n; j++ {
			if visited[j] {
				continue
			}
			if d := m[current][j].DistanceMeters; d < minDistance {
				minDistance = d
				best = j
			}
		}

		if best < 0 {
			return nil, errors.New("nearest neighbor: failed to select next point")
		}

		visited[best] = true
		order = append(order, best)
		current = best
	}

	return order, nil
}

// RouteTotalsAlong sums matrix entries from index 0 through the given visiting order.
func RouteTotalsAlong(m ports.Matrix, order []int) (domain.RouteTotals, error) {
	if err := checkSquare(m); err != nil {
		return domain.RouteTotals{}, fmt.Errorf("route totals: %w", err)
	}

	var totals domain.RouteTotals
	current := 0
	for _, next := range order {
		if next <= 0 || next >= len(m) {
			return domain.RouteTotals{}, fmt.Errorf("route totals: index %d out of range", next)
		}
		leg := m[current][next]
		totals.DistanceMeters += leg.DistanceMeters
		totals.DurationSeconds += leg.DurationSeconds
		current = next
	}
	return totals, nil
}

func checkSquare(m ports.Matrix) error {
	for i, row := range m {
		if len(row) != len(m) {
			return fmt.Errorf("matrix row %d has %d entries, want %d", i, len(row), len(m))
		}
	}
	return nil
}
