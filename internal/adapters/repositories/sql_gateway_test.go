package repositories

import (
	"context"
	"database/sql"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/db"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func intp(v int) *int        { return &v }

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, InitSchema(context.Background(), conn, db.SQLite))
	return conn
}

func seededGateway(t *testing.T) *SQLGateway {
	t.Helper()

	conn := openTestDB(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inactive := false

	require.NoError(t, SeedData(context.Background(), conn, db.SQLite, &Seed{
		Drivers: []DriverSeed{
			{ID: 1, Name: "Ana", Lon: f64(-73.99), Lat: f64(40.73)},
			{ID: 2, Name: "Ben"},
			{ID: 3, Name: "Cy", Lon: f64(1), Lat: f64(2), Active: &inactive},
		},
		Orders: []OrderSeed{
			{ID: 10, DeliveryAddress: "1 Main St", DriverID: i64(1), DeliverySequence: intp(0), CreatedAt: &created},
			{ID: 11, DeliveryAddress: "2 Main St", DriverID: i64(1), CreatedAt: &created},
			{ID: 12, DeliveryAddress: "3 Main St", DriverID: i64(1), Status: "delivered", CreatedAt: &created},
			{ID: 13, DeliveryAddress: domain.NoFixedAddress, CreatedAt: &created},
		},
		Stops: []StopSeed{
			{ID: 20, DriverID: 1, Name: "fuel", InsertAfterIndex: intp(0)},
			{ID: 21, DriverID: 1, Name: "lunch", Payment: 12.5},
		},
	}))

	return NewSQLGateway(conn, db.SQLite)
}

func TestSQLGatewayListing(t *testing.T) {
	ctx := context.Background()
	g := seededGateway(t)

	drivers, err := g.ListDrivers(ctx)
	require.NoError(t, err)
	require.Len(t, drivers, 3)
	assert.Equal(t, "Ana", drivers[0].Name)
	require.NotNil(t, drivers[0].Location)
	assert.InDelta(t, 40.73, drivers[0].Location.Lat, 1e-9)
	assert.Nil(t, drivers[1].Location)
	assert.True(t, drivers[1].Active)
	assert.False(t, drivers[2].Active)

	all, err := g.ListOrders(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	active, err := g.ListOrders(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, int64(10), active[0].ID)
	require.NotNil(t, active[0].DeliverySequence)
	assert.Equal(t, 0, *active[0].DeliverySequence)
	assert.Nil(t, active[1].DeliverySequence)
	assert.Equal(t, domain.OrderAssigned, active[1].Status)
	assert.Nil(t, active[2].DriverID)
	assert.Equal(t, domain.OrderPending, active[2].Status)
	assert.True(t, active[0].CreatedAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

	stops, err := g.ListStops(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, 0, stops[0].InsertAfterIndex)
	assert.Equal(t, domain.AfterAllOrders, stops[1].InsertAfterIndex)
	assert.InDelta(t, 12.5, stops[1].Payment, 1e-9)

	locs, err := g.DriverLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]domain.Coordinates{1: {Lon: -73.99, Lat: 40.73}}, locs)
}

func TestSQLGatewayOrderWrites(t *testing.T) {
	ctx := context.Background()
	g := seededGateway(t)

	require.NoError(t, g.UpdateOrderSequence(ctx, 11, 5))
	require.NoError(t, g.UpdateOrderDriver(ctx, 10, 2))
	require.ErrorIs(t, g.UpdateOrderSequence(ctx, 999, 1), domain.ErrNotFound)

	orders, err := g.ListOrders(ctx, true)
	require.NoError(t, err)
	byID := map[int64]*domain.Order{}
	for _, o := range orders {
		byID[o.ID] = o
	}
	assert.Equal(t, 5, *byID[11].DeliverySequence)
	assert.Equal(t, int64(2), *byID[10].DriverID)
	assert.Nil(t, byID[10].DeliverySequence, "reassignment clears the sequence")
}

func TestSQLGatewayFinishedOrders(t *testing.T) {
	ctx := context.Background()
	g := seededGateway(t)

	delivered, err := g.GetOrder(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDelivered, delivered.Status)
	require.NotNil(t, delivered.DriverID)
	assert.Equal(t, int64(1), *delivered.DriverID)

	_, err = g.GetOrder(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, g.UpdateOrderDriver(ctx, 12, 2), domain.ErrInvalidTransition)
	require.ErrorIs(t, g.UpdateOrderDriver(ctx, 999, 2), domain.ErrNotFound)

	after, err := g.GetOrder(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *after.DriverID, "a delivered order keeps its driver")
}

func TestSQLGatewayStops(t *testing.T) {
	ctx := context.Background()
	g := seededGateway(t)

	created, err := g.CreateStop(ctx, domain.NewStop{DriverID: 2, Name: "depot", InsertAfterIndex: -1, Sequence: 0})
	require.NoError(t, err)
	assert.Greater(t, created.ID, int64(21))

	name, anchor := "warehouse", 3
	require.NoError(t, g.UpdateStop(ctx, created.ID, domain.StopPatch{Name: &name, InsertAfterIndex: &anchor}))
	require.NoError(t, g.UpdateStop(ctx, created.ID, domain.StopPatch{}))
	require.ErrorIs(t, g.UpdateStop(ctx, 999, domain.StopPatch{Name: &name}), domain.ErrNotFound)

	stops, err := g.ListStops(ctx, 2)
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "warehouse", stops[0].Name)
	assert.Equal(t, 3, stops[0].InsertAfterIndex)

	require.NoError(t, g.DeleteStop(ctx, created.ID))
	require.ErrorIs(t, g.DeleteStop(ctx, created.ID), domain.ErrNotFound)
}

func TestSQLGatewayBatchWrites(t *testing.T) {
	ctx := context.Background()
	g := seededGateway(t)

	require.NoError(t, g.UpdateOrderSequences(ctx, map[int64]int{10: 1, 11: 0}))
	require.NoError(t, g.UpdateStopPositions(ctx, map[int64]domain.StopPosition{
		20: {InsertAfterIndex: 1, Sequence: 0},
		21: {InsertAfterIndex: 1, Sequence: 1},
	}))

	// A missing row rolls back the whole batch.
	err := g.UpdateOrderSequences(ctx, map[int64]int{10: 7, 999: 0})
	require.ErrorIs(t, err, domain.ErrNotFound)

	orders, err := g.ListOrders(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, *orders[0].DeliverySequence)
	assert.Equal(t, 0, *orders[1].DeliverySequence)

	stops, err := g.ListStops(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stops[0].InsertAfterIndex)
	assert.Equal(t, 1, stops[1].Sequence)
}

func TestSeedFromJSON(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"drivers": [{"id": 1, "name": "Ana", "lon": 1.5, "lat": 2.5}],
		"orders": [{"id": 1, "delivery_address": "1 Main St", "driver_id": 1, "delivery_sequence": 0}],
		"stops": [{"id": 1, "driver_id": 1, "name": "fuel", "insert_after_index": 0}]
	}`), 0o600))

	require.NoError(t, SeedFromJSON(ctx, conn, db.SQLite, path))
	require.NoError(t, SeedFromJSON(ctx, conn, db.SQLite, path), "seeding is idempotent")

	g := NewSQLGateway(conn, db.SQLite)
	orders, err := g.ListOrders(ctx, true)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"orders": [{"id": 2, "delivery_address": " "}]}`), 0o600))
	require.Error(t, SeedFromJSON(ctx, conn, db.SQLite, bad))

	require.Error(t, SeedFromJSON(ctx, conn, db.SQLite, filepath.Join(t.TempDir(), "missing.json")))
}
