package services

import (
	"context"
	"errors"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errGatewayDown = errors.New("gateway down")

var t0 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

// fakeGateway is an in-memory PersistenceGateway recording every write.
type fakeGateway struct {
	mu        sync.Mutex
	orders    map[int64]*domain.Order
	stops     map[int64]*domain.Stop
	stopOrder []int64
	locations map[int64]domain.Coordinates
	nextStop  int64

	writes []string
	failOn map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		orders:    map[int64]*domain.Order{},
		stops:     map[int64]*domain.Stop{},
		locations: map[int64]domain.Coordinates{},
		nextStop:  100,
		failOn:    map[string]bool{},
	}
}

func (g *fakeGateway) addOrder(id, driverID int64, sequence *int, createdMin int, address string) *domain.Order {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := driverID
	o := &domain.Order{
		ID:               id,
		DeliveryAddress:  address,
		DriverID:         &d,
		DeliverySequence: sequence,
		Status:           domain.OrderAssigned,
		CreatedAt:        t0.Add(time.Duration(createdMin) * time.Minute),
	}
	g.orders[id] = o
	return o
}

func (g *fakeGateway) addStop(id, driverID int64, anchor, sequence int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stops[id] = &domain.Stop{ID: id, DriverID: driverID, Name: fmt.Sprintf("stop %d", id), InsertAfterIndex: anchor, Sequence: sequence}
	g.stopOrder = append(g.stopOrder, id)
}

func (g *fakeGateway) setStatus(orderID int64, status domain.OrderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[orderID].Status = status
}

func (g *fakeGateway) fail(op string) error {
	g.writes = append(g.writes, op)
	if g.failOn[op] {
		return errGatewayDown
	}
	return nil
}

func (g *fakeGateway) writeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.writes)
}

func (g *fakeGateway) ListOrders(ctx context.Context, activeOnly bool) ([]*domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failOn["ListOrders"] {
		return nil, errGatewayDown
	}
	out := make([]*domain.Order, 0, len(g.orders))
	for _, id := range sortedKeys(g.orders) {
		o := g.orders[id]
		if activeOnly && o.Status.IsTerminal() {
			continue
		}
		out = append(out, o.Clone())
	}
	return out, nil
}

func (g *fakeGateway) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failOn["GetOrder"] {
		return nil, errGatewayDown
	}
	o, ok := g.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

// ListDrivers derives the driver table from everything that references one.
func (g *fakeGateway) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failOn["ListDrivers"] {
		return nil, errGatewayDown
	}
	ids := map[int64]struct{}{}
	for _, o := range g.orders {
		if o.DriverID != nil {
			ids[*o.DriverID] = struct{}{}
		}
	}
	for _, s := range g.stops {
		ids[s.DriverID] = struct{}{}
	}
	for id := range g.locations {
		ids[id] = struct{}{}
	}
	out := make([]*domain.Driver, 0, len(ids))
	for _, id := range sortedKeys(ids) {
		out = append(out, &domain.Driver{ID: id, Name: fmt.Sprintf("driver %d", id), Active: true})
	}
	return out, nil
}

func (g *fakeGateway) ListStops(ctx context.Context, driverID int64) ([]*domain.Stop, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := []*domain.Stop{}
	for _, id := range g.stopOrder {
		if s, ok := g.stops[id]; ok && s.DriverID == driverID {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (g *fakeGateway) UpdateOrderSequence(ctx context.Context, orderID int64, seq int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("UpdateOrderSequence"); err != nil {
		return err
	}
	g.orders[orderID].DeliverySequence = &seq
	return nil
}

func (g *fakeGateway) UpdateOrderDriver(ctx context.Context, orderID, driverID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("UpdateOrderDriver"); err != nil {
		return err
	}
	o, ok := g.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status.IsTerminal() {
		return domain.ErrInvalidTransition
	}
	o.DriverID = &driverID
	o.DeliverySequence = nil
	return nil
}

func (g *fakeGateway) CreateStop(ctx context.Context, in domain.NewStop) (*domain.Stop, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("CreateStop"); err != nil {
		return nil, err
	}
	g.nextStop++
	s := &domain.Stop{
		ID:               g.nextStop,
		DriverID:         in.DriverID,
		Name:             in.Name,
		Location:         in.Location,
		Instruction:      in.Instruction,
		Payment:          in.Payment,
		InsertAfterIndex: in.InsertAfterIndex,
		Sequence:         in.Sequence,
	}
	g.stops[s.ID] = s
	g.stopOrder = append(g.stopOrder, s.ID)
	return s.Clone(), nil
}

func (g *fakeGateway) UpdateStop(ctx context.Context, stopID int64, patch domain.StopPatch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("UpdateStop"); err != nil {
		return err
	}
	s, ok := g.stops[stopID]
	if !ok {
		return domain.ErrNotFound
	}
	g.stops[stopID] = patch.Apply(s)
	return nil
}

func (g *fakeGateway) DeleteStop(ctx context.Context, stopID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("DeleteStop"); err != nil {
		return err
	}
	delete(g.stops, stopID)
	g.stopOrder = slices.DeleteFunc(g.stopOrder, func(id int64) bool { return id == stopID })
	return nil
}

func (g *fakeGateway) DriverLocations(ctx context.Context) (map[int64]domain.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[int64]domain.Coordinates, len(g.locations))
	for id, c := range g.locations {
		out[id] = c
	}
	return out, nil
}

var _ ports.DriverDirectory = (*fakeGateway)(nil)

// batchGateway adds transactional batch writes to fakeGateway.
type batchGateway struct {
	*fakeGateway
}

var _ ports.BatchSequenceWriter = batchGateway{}

func (g batchGateway) UpdateOrderSequences(ctx context.Context, seqs map[int64]int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("UpdateOrderSequences"); err != nil {
		return err
	}
	for id, s := range seqs {
		v := s
		g.orders[id].DeliverySequence = &v
	}
	return nil
}

func (g batchGateway) UpdateStopPositions(ctx context.Context, positions map[int64]domain.StopPosition) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("UpdateStopPositions"); err != nil {
		return err
	}
	for id, p := range positions {
		g.stops[id].InsertAfterIndex = p.InsertAfterIndex
		g.stops[id].Sequence = p.Sequence
	}
	return nil
}

func intp(n int) *int { return &n }

// newManager loads a store from gw and returns it with a manager over it.
func newManager(t *testing.T, gw ports.PersistenceGateway) (*RouteStore, *SequenceManager) {
	t.Helper()

	store := NewRouteStore()
	m := NewSequenceManager(gw, store)
	require.NoError(t, m.Refresh(context.Background()))
	return store, m
}

func timelineLabels(items []domain.TimelineItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Kind == domain.KindOrder {
			out = append(out, fmt.Sprintf("O%d", it.Order.ID))
		} else {
			out = append(out, fmt.Sprintf("S%d", it.Stop.ID))
		}
	}
	return out
}

func sequences(store *RouteStore, driverID int64) map[int64]*int {
	out := map[int64]*int{}
	for _, o := range store.Snapshot().OrdersFor(driverID) {
		out[o.ID] = o.DeliverySequence
	}
	return out
}
