package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fleet-sequencing-service/internal/platform/db"
	"fmt"
)

// InitSchema creates the service tables for the given dialect.
// It is idempotent.
func InitSchema(ctx context.Context, conn *sql.DB, dialect db.Dialect) error {
	if conn == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createDriversQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS drivers (
		id %s,
		name TEXT NOT NULL,
		lon %s,
		lat %s,
		active %s NOT NULL
	);
	`, dialect.AutoIncrementPK(), dialect.RealType(), dialect.RealType(), dialect.BoolType())

	createOrdersQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS orders (
		id %s,
		delivery_address TEXT NOT NULL,
		driver_id BIGINT REFERENCES drivers(id),
		delivery_sequence INTEGER,
		status TEXT NOT NULL,
		created_at %s NOT NULL
	);
	`, dialect.AutoIncrementPK(), dialect.TimestampType())

	createStopsQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS stops (
		id %s,
		driver_id BIGINT NOT NULL REFERENCES drivers(id),
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		instruction TEXT NOT NULL DEFAULT '',
		payment %s NOT NULL DEFAULT 0,
		insert_after_index INTEGER NOT NULL DEFAULT -1,
		sequence INTEGER NOT NULL DEFAULT 0,
		created_at %s NOT NULL
	);
	`, dialect.AutoIncrementPK(), dialect.RealType(), dialect.TimestampType())

	createDistanceCacheQuery := `
	CREATE TABLE IF NOT EXISTS distance_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		PRIMARY KEY (origin, destination)
	);
	`

	createGeocodeCacheQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon %s NOT NULL,
		lat %s NOT NULL
	);
	`, dialect.RealType(), dialect.RealType())

	statements := []string{
		createDriversQuery,
		createOrdersQuery,
		createStopsQuery,
		createDistanceCacheQuery,
		createGeocodeCacheQuery,
		`CREATE INDEX IF NOT EXISTS idx_orders_driver ON orders(driver_id);`,
		`CREATE INDEX IF NOT EXISTS idx_stops_driver ON stops(driver_id);`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
