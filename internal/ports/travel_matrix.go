package ports

import (
	"context"
	"fleet-sequencing-service/internal/domain"
)

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMeters  int
	DurationSeconds int
}

// Matrix[i][j] is the travel from origins[i] to destinations[j].
type Matrix [][]DistanceResult

// Contract for retrieving pairwise driving distance and duration.
type TravelMatrix interface {
	Query(ctx context.Context, origins []domain.Coordinates, destinations []domain.Coordinates) (Matrix, error)
}
