package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/db"
	"fmt"
	"os"
	"strings"
	"time"
)

type DriverSeed struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Lon    *float64 `json:"lon"`
	Lat    *float64 `json:"lat"`
	Active *bool    `json:"active"`
}

type OrderSeed struct {
	ID               int64      `json:"id"`
	DeliveryAddress  string     `json:"delivery_address"`
	DriverID         *int64     `json:"driver_id"`
	DeliverySequence *int       `json:"delivery_sequence"`
	Status           string     `json:"status"`
	CreatedAt        *time.Time `json:"created_at"`
}

type StopSeed struct {
	ID               int64   `json:"id"`
	DriverID         int64   `json:"driver_id"`
	Name             string  `json:"name"`
	Location         string  `json:"location"`
	Instruction      string  `json:"instruction"`
	Payment          float64 `json:"payment"`
	InsertAfterIndex *int    `json:"insert_after_index"`
	Sequence         int     `json:"sequence"`
}

// Seed is the JSON document accepted by SeedFromJSON.
type Seed struct {
	Drivers []DriverSeed `json:"drivers"`
	Orders  []OrderSeed  `json:"orders"`
	Stops   []StopSeed   `json:"stops"`
}

func (s *Seed) validate() error {
	for i, d := range s.Drivers {
		if d.ID <= 0 {
			return fmt.Errorf("driver at index %d: invalid id %d", i+1, d.ID)
		}
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("driver at index %d: name cannot be empty", i+1)
		}
		if (d.Lon == nil) != (d.Lat == nil) {
			return fmt.Errorf("driver at index %d: lon and lat must be set together", i+1)
		}
	}
	for i, o := range s.Orders {
		if o.ID <= 0 {
			return fmt.Errorf("order at index %d: invalid id %d", i+1, o.ID)
		}
		if strings.TrimSpace(o.DeliveryAddress) == "" {
			return fmt.Errorf("order at index %d: delivery address cannot be empty", i+1)
		}
		if o.Status != "" && !domain.OrderStatus(o.Status).Valid() {
			return fmt.Errorf("order at index %d: unknown status %q", i+1, o.Status)
		}
	}
	for i, st := range s.Stops {
		if st.ID <= 0 || st.DriverID <= 0 {
			return fmt.Errorf("stop at index %d: invalid id %d or driver %d", i+1, st.ID, st.DriverID)
		}
		if strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("stop at index %d: name cannot be empty", i+1)
		}
		if st.InsertAfterIndex != nil && *st.InsertAfterIndex < domain.AfterAllOrders {
			return fmt.Errorf("stop at index %d: invalid insert_after_index %d", i+1, *st.InsertAfterIndex)
		}
	}
	return nil
}

// SeedFromJSON loads drivers, orders and stops from a JSON file.
// Rows are upserted by id, so seeding twice is harmless.
func SeedFromJSON(ctx context.Context, conn *sql.DB, dialect db.Dialect, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}
	return SeedData(ctx, conn, dialect, &data)
}

func SeedData(ctx context.Context, conn *sql.DB, dialect db.Dialect, data *Seed) error {
	if err := data.validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	for _, d := range data.Drivers {
		active := true
		if d.Active != nil {
			active = *d.Active
		}
		if _, err := tx.ExecContext(ctx, dialect.Rebind(`
		INSERT INTO drivers (id, name, lon, lat, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, lon = EXCLUDED.lon, lat = EXCLUDED.lat, active = EXCLUDED.active;
		`), d.ID, strings.TrimSpace(d.Name), d.Lon, d.Lat, active); err != nil {
			return fmt.Errorf("seed: insert driver id=%d: %w", d.ID, err)
		}
	}

	for _, o := range data.Orders {
		status := domain.OrderStatus(o.Status)
		if status == "" {
			status = domain.OrderPending
			if o.DriverID != nil {
				status = domain.OrderAssigned
			}
		}
		created := now
		if o.CreatedAt != nil {
			created = o.CreatedAt.UTC()
		}
		if _, err := tx.ExecContext(ctx, dialect.Rebind(`
		INSERT INTO orders (id, delivery_address, driver_id, delivery_sequence, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET delivery_address = EXCLUDED.delivery_address,
			driver_id = EXCLUDED.driver_id,
			delivery_sequence = EXCLUDED.delivery_sequence,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at;
		`), o.ID, strings.TrimSpace(o.DeliveryAddress), o.DriverID, o.DeliverySequence, string(status), created); err != nil {
			return fmt.Errorf("seed: insert order id=%d: %w", o.ID, err)
		}
	}

	for _, st := range data.Stops {
		anchor := domain.AfterAllOrders
		if st.InsertAfterIndex != nil {
			anchor = *st.InsertAfterIndex
		}
		if _, err := tx.ExecContext(ctx, dialect.Rebind(`
		INSERT INTO stops (id, driver_id, name, location, instruction, payment, insert_after_index, sequence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET driver_id = EXCLUDED.driver_id,
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			instruction = EXCLUDED.instruction,
			payment = EXCLUDED.payment,
			insert_after_index = EXCLUDED.insert_after_index,
			sequence = EXCLUDED.sequence;
		`), st.ID, st.DriverID, strings.TrimSpace(st.Name), st.Location, st.Instruction, st.Payment, anchor, st.Sequence, now); err != nil {
			return fmt.Errorf("seed: insert stop id=%d: %w", st.ID, err)
		}
	}

	// Explicit ids do not advance Postgres sequences.
	if dialect == db.Postgres {
		for _, table := range []string{"drivers", "orders", "stops"} {
			q := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false);`, table)
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("seed: reset %s id sequence: %w", table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
