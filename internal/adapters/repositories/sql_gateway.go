package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/db"
	"fleet-sequencing-service/internal/platform/obs"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"strings"
	"time"
)

// SQLGateway is the SQLite/Postgres implementation of the PersistenceGateway
// port. Batched sequence writes run in a single transaction.
type SQLGateway struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var (
	_ ports.PersistenceGateway  = (*SQLGateway)(nil)
	_ ports.BatchSequenceWriter = (*SQLGateway)(nil)
	_ ports.DriverDirectory     = (*SQLGateway)(nil)
)

func NewSQLGateway(conn *sql.DB, dialect db.Dialect) *SQLGateway {
	return &SQLGateway{DB: conn, Dialect: dialect}
}

func (g *SQLGateway) q(query string) string {
	return g.Dialect.Rebind(query)
}

// ListDrivers returns every driver ordered by id.
func (g *SQLGateway) ListDrivers(ctx context.Context) (_ []*domain.Driver, err error) {
	defer obs.Time(ctx, "gateway.ListDrivers")(&err)

	rows, err := g.DB.QueryContext(ctx, `
	SELECT id, name, lon, lat, active
	FROM drivers
	ORDER BY id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list drivers: query drivers table: %w", err)
	}
	defer rows.Close()

	drivers := make([]*domain.Driver, 0, 16)
	for rows.Next() {
		var d domain.Driver
		var lon, lat sql.NullFloat64
		if err := rows.Scan(&d.ID, &d.Name, &lon, &lat, &d.Active); err != nil {
			return nil, fmt.Errorf("list drivers: scan row: %w", err)
		}
		if lon.Valid && lat.Valid {
			d.Location = &domain.Coordinates{Lon: lon.Float64, Lat: lat.Float64}
		}
		drivers = append(drivers, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list drivers: row iteration: %w", err)
	}

	return drivers, nil
}

func (g *SQLGateway) ListOrders(ctx context.Context, activeOnly bool) (_ []*domain.Order, err error) {
	defer obs.Time(ctx, "gateway.ListOrders")(&err)

	query := `
	SELECT id, delivery_address, driver_id, delivery_sequence, status, created_at
	FROM orders
	`
	var args []any
	if activeOnly {
		query += `WHERE status NOT IN (?, ?)
		`
		args = append(args, string(domain.OrderDelivered), string(domain.OrderCancelled))
	}
	query += `ORDER BY id;`

	rows, err := g.DB.QueryContext(ctx, g.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, 64)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: row iteration: %w", err)
	}

	return orders, nil
}

// GetOrder returns one order whatever its status.
func (g *SQLGateway) GetOrder(ctx context.Context, orderID int64) (_ *domain.Order, err error) {
	defer obs.Time(ctx, "gateway.GetOrder")(&err)

	row := g.DB.QueryRowContext(ctx, g.q(`
	SELECT id, delivery_address, driver_id, delivery_sequence, status, created_at
	FROM orders
	WHERE id = ?;
	`), orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return o, nil
}

// ListStops returns the driver's stops in insertion order.
func (g *SQLGateway) ListStops(ctx context.Context, driverID int64) (_ []*domain.Stop, err error) {
	defer obs.Time(ctx, "gateway.ListStops")(&err)

	rows, err := g.DB.QueryContext(ctx, g.q(`
	SELECT id, driver_id, name, location, instruction, payment, insert_after_index, sequence, created_at
	FROM stops
	WHERE driver_id = ?
	ORDER BY id;
	`), driverID)
	if err != nil {
		return nil, fmt.Errorf("list stops: query stops table: %w", err)
	}
	defer rows.Close()

	stops := make([]*domain.Stop, 0, 8)
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("list stops: %w", err)
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stops: row iteration: %w", err)
	}

	return stops, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*domain.Order, error) {
	var o domain.Order
	var driverID sql.NullInt64
	var seq sql.NullInt32
	var status string
	if err := r.Scan(&o.ID, &o.DeliveryAddress, &driverID, &seq, &status, &o.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if driverID.Valid {
		id := driverID.Int64
		o.DriverID = &id
	}
	if seq.Valid {
		s := int(seq.Int32)
		o.DeliverySequence = &s
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func scanStop(r rowScanner) (*domain.Stop, error) {
	var s domain.Stop
	if err := r.Scan(&s.ID, &s.DriverID, &s.Name, &s.Location, &s.Instruction, &s.Payment,
		&s.InsertAfterIndex, &s.Sequence, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan stop: %w", err)
	}
	return &s, nil
}

func (g *SQLGateway) UpdateOrderSequence(ctx context.Context, orderID int64, seq int) error {
	res, err := g.DB.ExecContext(ctx, g.q(`UPDATE orders SET delivery_sequence = ? WHERE id = ?;`), seq, orderID)
	if err != nil {
		return fmt.Errorf("update order %d sequence: %w", orderID, err)
	}
	return expectOne(res, "order", orderID)
}

// UpdateOrderDriver moves the order to driverID and clears its delivery
// sequence so it sorts after the new driver's sequenced orders. Delivered and
// cancelled orders are not moved.
func (g *SQLGateway) UpdateOrderDriver(ctx context.Context, orderID, driverID int64) error {
	res, err := g.DB.ExecContext(ctx, g.q(`
	UPDATE orders
	SET driver_id = ?, delivery_sequence = NULL
	WHERE id = ? AND status NOT IN (?, ?);
	`), driverID, orderID, string(domain.OrderDelivered), string(domain.OrderCancelled))
	if err != nil {
		return fmt.Errorf("update order %d driver: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %d driver: rows affected: %w", orderID, err)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: tell a missing order from a finished one.
	var status string
	err = g.DB.QueryRowContext(ctx, g.q(`SELECT status FROM orders WHERE id = ?;`), orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update order %d driver: read status: %w", orderID, err)
	}
	return fmt.Errorf("update order %d driver: status %s: %w", orderID, status, domain.ErrInvalidTransition)
}

func (g *SQLGateway) CreateStop(ctx context.Context, in domain.NewStop) (_ *domain.Stop, err error) {
	defer obs.Time(ctx, "gateway.CreateStop")(&err)

	created := time.Now().UTC()
	var id int64
	err = g.DB.QueryRowContext(ctx, g.q(`
	INSERT INTO stops (driver_id, name, location, instruction, payment, insert_after_index, sequence, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id;
	`), in.DriverID, in.Name, in.Location, in.Instruction, in.Payment, in.InsertAfterIndex, in.Sequence, created).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create stop: insert: %w", err)
	}

	return &domain.Stop{
		ID:               id,
		DriverID:         in.DriverID,
		Name:             in.Name,
		Location:         in.Location,
		Instruction:      in.Instruction,
		Payment:          in.Payment,
		InsertAfterIndex: in.InsertAfterIndex,
		Sequence:         in.Sequence,
		CreatedAt:        created,
	}, nil
}

// UpdateStop writes the non-nil fields of patch.
func (g *SQLGateway) UpdateStop(ctx context.Context, stopID int64, patch domain.StopPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.DriverID != nil {
		add("driver_id", *patch.DriverID)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.Instruction != nil {
		add("instruction", *patch.Instruction)
	}
	if patch.Payment != nil {
		add("payment", *patch.Payment)
	}
	if patch.InsertAfterIndex != nil {
		add("insert_after_index", *patch.InsertAfterIndex)
	}
	if patch.Sequence != nil {
		add("sequence", *patch.Sequence)
	}
	args = append(args, stopID)

	// Only column names from the fixed list above are interpolated.
	query := fmt.Sprintf(`UPDATE stops SET %s WHERE id = ?;`, strings.Join(sets, ", "))
	res, err := g.DB.ExecContext(ctx, g.q(query), args...)
	if err != nil {
		return fmt.Errorf("update stop %d: %w", stopID, err)
	}
	return expectOne(res, "stop", stopID)
}

func (g *SQLGateway) DeleteStop(ctx context.Context, stopID int64) error {
	res, err := g.DB.ExecContext(ctx, g.q(`DELETE FROM stops WHERE id = ?;`), stopID)
	if err != nil {
		return fmt.Errorf("delete stop %d: %w", stopID, err)
	}
	return expectOne(res, "stop", stopID)
}

// DriverLocations returns the last known position of every active driver
// that has one.
func (g *SQLGateway) DriverLocations(ctx context.Context) (map[int64]domain.Coordinates, error) {
	rows, err := g.DB.QueryContext(ctx, g.q(`
	SELECT id, lon, lat
	FROM drivers
	WHERE active = ? AND lon IS NOT NULL AND lat IS NOT NULL;
	`), true)
	if err != nil {
		return nil, fmt.Errorf("driver locations: query drivers table: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]domain.Coordinates)
	for rows.Next() {
		var id int64
		var c domain.Coordinates
		if err := rows.Scan(&id, &c.Lon, &c.Lat); err != nil {
			return nil, fmt.Errorf("driver locations: scan row: %w", err)
		}
		out[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("driver locations: row iteration: %w", err)
	}

	return out, nil
}

// UpdateOrderSequences writes all sequences in one transaction.
// A missing order rolls the whole batch back.
func (g *SQLGateway) UpdateOrderSequences(ctx context.Context, seqs map[int64]int) (err error) {
	defer obs.Time(ctx, "gateway.UpdateOrderSequences")(&err)

	return g.inTx(ctx, g.q(`UPDATE orders SET delivery_sequence = ? WHERE id = ?;`), func(stmt *sql.Stmt) error {
		for id, s := range seqs {
			res, err := stmt.ExecContext(ctx, s, id)
			if err != nil {
				return fmt.Errorf("update order %d sequence: %w", id, err)
			}
			if err := expectOne(res, "order", id); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStopPositions writes anchors and sequences in one transaction.
func (g *SQLGateway) UpdateStopPositions(ctx context.Context, positions map[int64]domain.StopPosition) (err error) {
	defer obs.Time(ctx, "gateway.UpdateStopPositions")(&err)

	return g.inTx(ctx, g.q(`UPDATE stops SET insert_after_index = ?, sequence = ? WHERE id = ?;`), func(stmt *sql.Stmt) error {
		for id, p := range positions {
			res, err := stmt.ExecContext(ctx, p.InsertAfterIndex, p.Sequence, id)
			if err != nil {
				return fmt.Errorf("update stop %d position: %w", id, err)
			}
			if err := expectOne(res, "stop", id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *SQLGateway) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := g.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("db prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db commit: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return nil
}
