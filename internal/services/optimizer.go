package services

import (
	"context"
	"errors"
	"fleet-sequencing-service/internal/config"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/obs"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"log"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Skip reasons reported per driver.
const (
	SkipNoLocation         = "driver location unknown"
	SkipTooFewOrders       = "fewer than two active orders"
	SkipTooFewResolved     = "fewer than two resolvable addresses"
	SkipMatrixUnavailable  = "travel matrix unavailable"
	SkipGeocodeUnavailable = "geocoding unavailable"
)

// errSkip carries a skip reason out of a single driver's pass.
type errSkip struct {
	reason string
	cause  error
}

func (e *errSkip) Error() string {
	if e.cause != nil {
		return e.reason + ": " + e.cause.Error()
	}
	return e.reason
}

func (e *errSkip) Unwrap() error { return e.cause }

// SkipReason reports why a single-driver proposal produced no result.
func SkipReason(err error) (string, bool) {
	var skip *errSkip
	if errors.As(err, &skip) {
		return skip.reason, true
	}
	return "", false
}

// Optimizer proposes nearest-neighbor visiting orders per driver.
//
// Proposals never touch persisted state; Apply writes an accepted proposal
// through the SequenceManager and reloads the store.
type Optimizer struct {
	store       *RouteStore
	geo         ports.GeoLookup
	matrix      ports.TravelMatrix
	seq         *SequenceManager
	costs       config.CostModel
	concurrency int
}

func NewOptimizer(
	store *RouteStore,
	geo ports.GeoLookup,
	matrix ports.TravelMatrix,
	seq *SequenceManager,
	costs config.CostModel,
	concurrency int,
) *Optimizer {
	return &Optimizer{
		store:       store,
		geo:         geo,
		matrix:      matrix,
		seq:         seq,
		costs:       costs,
		concurrency: max(concurrency, 1),
	}
}

// Propose runs one optimization pass per driver, one driver at a time.
//
// A driver whose pass fails is reported as skipped; only cancellation of ctx
// aborts the whole run, discarding partial results.
func (o *Optimizer) Propose(ctx context.Context) (_ *domain.OptimizationReport, err error) {
	defer obs.Time(ctx, "optimizer.Propose")(&err)

	snap := o.store.Snapshot()
	report := &domain.OptimizationReport{
		Results: []*domain.OptimizationResult{},
		Skipped: []domain.SkippedDriver{},
	}

	for _, driverID := range snap.DriverIDs() {
		if len(snap.OrdersFor(driverID)) == 0 {
			continue
		}

		res, err := o.proposeFor(ctx, snap, driverID)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimizer propose: %w", err)
		}

		var skip *errSkip
		switch {
		case errors.As(err, &skip):
			log.Printf("optimizer: skip driver_id=%d reason=%q", driverID, skip.Error())
			report.Skipped = append(report.Skipped, domain.SkippedDriver{DriverID: driverID, Reason: skip.reason})
		case err != nil:
			return nil, fmt.Errorf("optimizer propose: driver %d: %w", driverID, err)
		default:
			report.Results = append(report.Results, res)
		}
	}

	return report, nil
}

// ProposeForDriver optimizes a single driver's route.
// A driver that cannot be optimized yields an error describing why.
func (o *Optimizer) ProposeForDriver(ctx context.Context, driverID int64) (_ *domain.OptimizationResult, err error) {
	defer obs.Time(ctx, "optimizer.ProposeForDriver")(&err)

	return o.proposeFor(ctx, o.store.Snapshot(), driverID)
}

func (o *Optimizer) proposeFor(ctx context.Context, snap *Snapshot, driverID int64) (*domain.OptimizationResult, error) {
	orders := snap.OrdersFor(driverID)
	if len(orders) < 2 {
		return nil, &errSkip{reason: SkipTooFewOrders}
	}

	start, ok := snap.DriverLocation(driverID)
	if !ok {
		return nil, &errSkip{reason: SkipNoLocation}
	}

	coords, err := o.geocodeOrders(ctx, driverID, orders)
	if err != nil {
		return nil, &errSkip{reason: SkipGeocodeUnavailable, cause: err}
	}

	resolved := make([]*domain.Order, 0, len(orders))
	unresolved := make([]int64, 0)
	points := []domain.Coordinates{start}
	for i, ord := range orders {
		c := coords[i]
		if c == nil {
			unresolved = append(unresolved, ord.ID)
			continue
		}
		resolved = append(resolved, ord)
		points = append(points, *c)
	}
	if len(resolved) < 2 {
		return nil, &errSkip{reason: SkipTooFewResolved}
	}

	m, err := o.matrix.Query(ctx, points, points)
	if err != nil {
		return nil, &errSkip{reason: SkipMatrixUnavailable, cause: err}
	}
	if len(m) != len(points) {
		return nil, &errSkip{reason: SkipMatrixUnavailable, cause: fmt.Errorf("got %d rows for %d points", len(m), len(points))}
	}

	proposedIdx, err := NearestNeighborOrder(m)
	if err != nil {
		return nil, &errSkip{reason: SkipMatrixUnavailable, cause: err}
	}

	currentIdx := make([]int, len(resolved))
	for i := range resolved {
		currentIdx[i] = i + 1
	}

	current, err := RouteTotalsAlong(m, currentIdx)
	if err != nil {
		return nil, err
	}
	proposed, err := RouteTotalsAlong(m, proposedIdx)
	if err != nil {
		return nil, err
	}

	currentIDs := make([]int64, 0, len(resolved))
	for _, ord := range resolved {
		currentIDs = append(currentIDs, ord.ID)
	}
	proposedIDs := make([]int64, 0, len(proposedIdx))
	for _, idx := range proposedIdx {
		proposedIDs = append(proposedIDs, resolved[idx-1].ID)
	}

	return &domain.OptimizationResult{
		DriverID:           driverID,
		CurrentOrderIDs:    currentIDs,
		ProposedOrderIDs:   proposedIDs,
		UnresolvedOrderIDs: unresolved,
		Current:            current,
		Proposed:           proposed,
		Savings:            EstimateSavings(current, proposed, o.costs),
		AlreadyOptimized:   slices.Equal(currentIDs, proposedIDs),
	}, nil
}

// geocodeOrders resolves order addresses concurrently, bounded by o.concurrency.
// The result is aligned with orders; nil marks an order left out of optimization.
// Only cancellation of ctx is returned as an error.
func (o *Optimizer) geocodeOrders(ctx context.Context, driverID int64, orders []*domain.Order) ([]*domain.Coordinates, error) {
	out := make([]*domain.Coordinates, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, ord := range orders {
		if !ord.HasFixedAddress() {
			continue
		}
		g.Go(func() error {
			c, err := o.geo.Resolve(gctx, ord.DeliveryAddress)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("optimizer: unresolvable address driver_id=%d order_id=%d address=%q err=%v",
					driverID, ord.ID, ord.DeliveryAddress, err)
				return nil
			}
			out[i] = &c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("geocode orders: %w", err)
	}
	return out, nil
}

// EstimateSavings compares the current and proposed totals.
// Time is in whole minutes, distance in km to one decimal, cost in cents.
func EstimateSavings(current, proposed domain.RouteTotals, costs config.CostModel) domain.Savings {
	deltaMeters := float64(current.DistanceMeters - proposed.DistanceMeters)
	deltaSeconds := float64(current.DurationSeconds - proposed.DurationSeconds)

	km := deltaMeters / 1000
	hours := deltaSeconds / 3600

	return domain.Savings{
		TimeSavedMinutes: math.Round(deltaSeconds / 60),
		DistanceSavedKm:  math.Round(km*10) / 10,
		CostSaved:        math.Round((km*costs.FuelCostPerKm+hours*costs.DriverCostPerHour)*100) / 100,
	}
}

// Apply persists an accepted proposal and reloads the route store.
//
// Proposed orders get sequences 0..k-1; orders that could not be geocoded
// follow in their prior relative order. The proposal must still cover exactly
// the driver's active orders.
func (o *Optimizer) Apply(ctx context.Context, res *domain.OptimizationResult) (err error) {
	defer obs.Time(ctx, "optimizer.Apply")(&err)

	if res == nil || len(res.ProposedOrderIDs) == 0 {
		return fmt.Errorf("apply optimization: empty proposal: %w", domain.ErrInvalidArgument)
	}

	current := o.store.Snapshot().OrdersFor(res.DriverID)
	full := append(slices.Clone(res.ProposedOrderIDs), res.UnresolvedOrderIDs...)

	want := make([]int64, 0, len(current))
	for _, ord := range current {
		want = append(want, ord.ID)
	}
	got := slices.Clone(full)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		return fmt.Errorf("apply optimization: driver %d route changed since proposal: %w", res.DriverID, domain.ErrInvalidTransition)
	}

	if err := o.seq.ApplyOrder(ctx, res.DriverID, full); err != nil {
		return fmt.Errorf("apply optimization: %w", err)
	}
	if err := o.seq.Refresh(ctx); err != nil {
		return fmt.Errorf("apply optimization: refresh: %w", err)
	}
	return nil
}
