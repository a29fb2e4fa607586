package ports

import (
	"context"
	"fleet-sequencing-service/internal/domain"
)

// Port: the durable store of order and stop sequence fields.
type PersistenceGateway interface {
	// List orders; with activeOnly, terminal orders are excluded.
	ListOrders(ctx context.Context, activeOnly bool) ([]*domain.Order, error)
	// Any order by id, terminal or not; domain.ErrNotFound when missing.
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListStops(ctx context.Context, driverID int64) ([]*domain.Stop, error)
	UpdateOrderSequence(ctx context.Context, orderID int64, deliverySequence int) error
	// Move an order to driverID. The order's delivery sequence is cleared
	// so it lands at the end of the new driver's list. A terminal order is
	// left untouched and reported as domain.ErrInvalidTransition.
	UpdateOrderDriver(ctx context.Context, orderID int64, driverID int64) error
	CreateStop(ctx context.Context, s domain.NewStop) (*domain.Stop, error)
	UpdateStop(ctx context.Context, stopID int64, patch domain.StopPatch) error
	DeleteStop(ctx context.Context, stopID int64) error
	// Last known coordinates of every active driver with a known position.
	DriverLocations(ctx context.Context) (map[int64]domain.Coordinates, error)
}

// Optional extension of PersistenceGateway that applies several sequence
// writes atomically.
type BatchSequenceWriter interface {
	UpdateOrderSequences(ctx context.Context, sequences map[int64]int) error
	UpdateStopPositions(ctx context.Context, positions map[int64]domain.StopPosition) error
}

// Optional extension of PersistenceGateway listing every known driver,
// including drivers with no orders and no position.
type DriverDirectory interface {
	ListDrivers(ctx context.Context) ([]*domain.Driver, error)
}
