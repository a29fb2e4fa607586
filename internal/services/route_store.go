package services

import (
	"context"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/obs"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"slices"
	"sync/atomic"
)

// Snapshot is an immutable view of the active orders and stops, grouped by driver.
// Orders are kept in route order. Snapshots are replaced, never edited.
type Snapshot struct {
	orders    map[int64][]*domain.Order
	stops     map[int64][]*domain.Stop
	locations map[int64]domain.Coordinates
}

func newSnapshot(orders []*domain.Order, stops []*domain.Stop, locations map[int64]domain.Coordinates) *Snapshot {
	grouped := make(map[int64][]*domain.Order)
	for _, o := range orders {
		// Unassigned and terminal orders are part of no route.
		if o.DriverID == nil || o.Status.IsTerminal() {
			continue
		}
		grouped[*o.DriverID] = append(grouped[*o.DriverID], o.Clone())
	}
	for id, list := range grouped {
		grouped[id] = domain.SortOrders(list)
	}

	stopsBy := make(map[int64][]*domain.Stop)
	for _, s := range stops {
		stopsBy[s.DriverID] = append(stopsBy[s.DriverID], s.Clone())
	}

	locs := make(map[int64]domain.Coordinates, len(locations))
	for id, c := range locations {
		locs[id] = c
	}

	return &Snapshot{orders: grouped, stops: stopsBy, locations: locs}
}

// OrdersFor returns the driver's active orders in route order.
func (s *Snapshot) OrdersFor(driverID int64) []*domain.Order {
	return slices.Clone(s.orders[driverID])
}

// StopsFor returns the driver's stops in the order they were loaded.
func (s *Snapshot) StopsFor(driverID int64) []*domain.Stop {
	return slices.Clone(s.stops[driverID])
}

// TimelineFor merges the driver's orders and stops into visiting order.
func (s *Snapshot) TimelineFor(driverID int64) []domain.TimelineItem {
	return domain.BuildTimeline(s.orders[driverID], s.stops[driverID])
}

// DriverLocation returns the driver's last known coordinates.
func (s *Snapshot) DriverLocation(driverID int64) (domain.Coordinates, bool) {
	c, ok := s.locations[driverID]
	return c, ok
}

// DriverIDs returns every driver with orders, stops or a known location, ascending.
func (s *Snapshot) DriverIDs() []int64 {
	seen := make(map[int64]struct{})
	for id := range s.orders {
		seen[id] = struct{}{}
	}
	for id := range s.stops {
		seen[id] = struct{}{}
	}
	for id := range s.locations {
		seen[id] = struct{}{}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FindOrder locates an active, assigned order by id.
func (s *Snapshot) FindOrder(orderID int64) (*domain.Order, bool) {
	for _, list := range s.orders {
		for _, o := range list {
			if o.ID == orderID {
				return o, true
			}
		}
	}
	return nil, false
}

func (s *Snapshot) FindStop(stopID int64) (*domain.Stop, bool) {
	for _, list := range s.stops {
		for _, st := range list {
			if st.ID == stopID {
				return st, true
			}
		}
	}
	return nil, false
}

// withStop returns a copy of the snapshot where the stop with updated.ID is
// replaced by updated, possibly under a different driver.
func (s *Snapshot) withStop(updated *domain.Stop) *Snapshot {
	stops := make([]*domain.Stop, 0)
	for _, id := range sortedKeys(s.stops) {
		for _, st := range s.stops[id] {
			if st.ID == updated.ID {
				continue
			}
			stops = append(stops, st)
		}
	}
	stops = append(stops, updated)

	orders := make([]*domain.Order, 0)
	for _, id := range sortedKeys(s.orders) {
		orders = append(orders, s.orders[id]...)
	}

	return newSnapshot(orders, stops, s.locations)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// RouteStore holds the latest known routing state.
//
// Every write elsewhere is followed by a reload from the persistence gateway,
// so the store never reconciles local edits with server state.
type RouteStore struct {
	snap atomic.Pointer[Snapshot]
}

func NewRouteStore() *RouteStore {
	s := &RouteStore{}
	s.snap.Store(newSnapshot(nil, nil, nil))
	return s
}

// Snapshot returns the current snapshot. It stays valid after later refreshes.
func (s *RouteStore) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Refresh replaces the snapshot wholesale. Driver locations are carried over.
func (s *RouteStore) Refresh(orders []*domain.Order, stops []*domain.Stop) {
	s.snap.Store(newSnapshot(orders, stops, s.snap.Load().locations))
}

// TimelineFor returns the driver's merged visiting order from the current snapshot.
func (s *RouteStore) TimelineFor(driverID int64) []domain.TimelineItem {
	return s.Snapshot().TimelineFor(driverID)
}

func (s *RouteStore) replace(snap *Snapshot) {
	s.snap.Store(snap)
}

// Load fetches active orders, driver locations and stops from the gateway and
// installs them as a new snapshot. On error the previous snapshot is kept.
func (s *RouteStore) Load(ctx context.Context, gw ports.PersistenceGateway) (err error) {
	defer obs.Time(ctx, "routestore.Load")(&err)

	orders, err := gw.ListOrders(ctx, true)
	if err != nil {
		return fmt.Errorf("load route store: list orders: %w: %w", domain.ErrAdapterUnavailable, err)
	}

	locations, err := gw.DriverLocations(ctx)
	if err != nil {
		return fmt.Errorf("load route store: driver locations: %w: %w", domain.ErrAdapterUnavailable, err)
	}

	driverSet := make(map[int64]struct{})
	for _, o := range orders {
		if o.DriverID != nil {
			driverSet[*o.DriverID] = struct{}{}
		}
	}
	for id := range locations {
		driverSet[id] = struct{}{}
	}
	// Drivers known from the previous snapshot may still own stops.
	for _, id := range s.Snapshot().DriverIDs() {
		driverSet[id] = struct{}{}
	}
	// A driver with only stops shows up in none of the above.
	if dir, ok := gw.(ports.DriverDirectory); ok {
		drivers, err := dir.ListDrivers(ctx)
		if err != nil {
			return fmt.Errorf("load route store: list drivers: %w: %w", domain.ErrAdapterUnavailable, err)
		}
		for _, d := range drivers {
			driverSet[d.ID] = struct{}{}
		}
	}

	var stops []*domain.Stop
	for _, id := range sortedKeys(driverSet) {
		list, err := gw.ListStops(ctx, id)
		if err != nil {
			return fmt.Errorf("load route store: list stops for driver %d: %w: %w", id, domain.ErrAdapterUnavailable, err)
		}
		stops = append(stops, list...)
	}

	s.snap.Store(newSnapshot(orders, stops, locations))
	return nil
}
