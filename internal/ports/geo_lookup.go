package ports

import (
	"context"
	"fleet-sequencing-service/internal/domain"
)

// Contract for resolving a free-text address to coordinates.
type GeoLookup interface {
	// Return the coordinates for address, or an error wrapping
	// domain.ErrAddressNotFound when the address has no match.
	Resolve(ctx context.Context, address string) (domain.Coordinates, error)
}
