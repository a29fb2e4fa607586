package services

import (
	"context"
	"errors"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/obs"
	"fleet-sequencing-service/internal/ports"
	"fmt"
	"slices"
	"strings"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("parse direction %q: %w", s, domain.ErrInvalidArgument)
}

// MoveResult reports whether a move changed anything.
// Moving past the first or last item is a successful no-op.
type MoveResult struct {
	Moved bool
}

// SequenceManager owns every mutation of order and stop ordering.
//
// Operations read the RouteStore snapshot, compute the new sequence fields and
// write them through the persistence gateway. They do not reload the store:
// callers must call Refresh before relying on ordering again. A failed write is
// returned as is; the caller re-fetches to resynchronize.
type SequenceManager struct {
	gw    ports.PersistenceGateway
	store *RouteStore
}

func NewSequenceManager(gw ports.PersistenceGateway, store *RouteStore) *SequenceManager {
	return &SequenceManager{gw: gw, store: store}
}

// Refresh reloads the RouteStore from the persistence gateway.
func (m *SequenceManager) Refresh(ctx context.Context) error {
	return m.store.Load(ctx, m.gw)
}

// MoveOrder swaps an order with its neighbour in the given direction.
//
// The two orders usually exchange delivery sequences; a missing sequence counts
// as the order's current position. When missing, sparse or repeated sequences
// would not yield the new order, the driver's orders are renumbered 0..n-1 by
// position and every order whose sequence changes is written, which can be
// more than two. Stops are never touched.
func (m *SequenceManager) MoveOrder(ctx context.Context, driverID, orderID int64, dir Direction) (_ MoveResult, err error) {
	defer obs.Time(ctx, "sequence.MoveOrder")(&err)

	orders := m.store.Snapshot().OrdersFor(driverID)
	idx := slices.IndexFunc(orders, func(o *domain.Order) bool { return o.ID == orderID })
	if idx < 0 {
		return MoveResult{}, fmt.Errorf("move order %d: not in driver %d route: %w", orderID, driverID, domain.ErrNotFound)
	}

	nb := idx - 1
	if dir == Down {
		nb = idx + 1
	}
	if nb < 0 || nb >= len(orders) {
		return MoveResult{}, nil
	}

	writes := planOrderSwap(orders, idx, nb)
	if err := m.writeOrderSequences(ctx, writes); err != nil {
		return MoveResult{}, fmt.Errorf("move order %d: %w", orderID, err)
	}

	return MoveResult{Moved: true}, nil
}

// planOrderSwap returns the sequence writes that exchange orders[i] and orders[j].
//
// Normally this is a two-order swap. When sparse or missing sequences would let
// the swapped values land elsewhere in the list, the whole list is renumbered
// by position instead, writing only the orders whose value changes.
func planOrderSwap(orders []*domain.Order, i, j int) map[int64]int {
	seqI := valueOr(orders[i].DeliverySequence, i)
	seqJ := valueOr(orders[j].DeliverySequence, j)
	if seqI == seqJ {
		seqI, seqJ = i, j
	}

	writes := map[int64]int{orders[i].ID: seqJ, orders[j].ID: seqI}

	want := slices.Clone(orders)
	want[i], want[j] = want[j], want[i]

	if sameOrder(domain.SortOrders(withSequences(orders, writes)), want) {
		return writes
	}

	writes = make(map[int64]int)
	for pos, o := range want {
		if o.DeliverySequence == nil || *o.DeliverySequence != pos {
			writes[o.ID] = pos
		}
	}
	return writes
}

func withSequences(orders []*domain.Order, writes map[int64]int) []*domain.Order {
	out := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		c := o.Clone()
		if s, ok := writes[o.ID]; ok {
			c.DeliverySequence = &s
		}
		out = append(out, c)
	}
	return out
}

func sameOrder(a, b []*domain.Order) bool {
	return slices.EqualFunc(a, b, func(x, y *domain.Order) bool { return x.ID == y.ID })
}

func valueOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

// MoveStop moves the stopIndex-th stop of the driver's timeline one item up or down.
//
// Positions are taken on the full timeline, so a stop can move past an order
// (changing its anchor) or past another stop. Moving down past an order puts
// the stop first among that order's stops; moving up past an order puts it last
// among the previous order's stops. A stop cannot move above the first order.
func (m *SequenceManager) MoveStop(ctx context.Context, driverID int64, stopIndex int, dir Direction) (_ MoveResult, err error) {
	defer obs.Time(ctx, "sequence.MoveStop")(&err)

	snap := m.store.Snapshot()
	orders := snap.OrdersFor(driverID)
	stops := snap.StopsFor(driverID)
	n := len(orders)
	timeline := domain.BuildTimeline(orders, stops)

	pos, seen := -1, 0
	for i, it := range timeline {
		if it.Kind != domain.KindStop {
			continue
		}
		if seen == stopIndex {
			pos = i
			break
		}
		seen++
	}
	if pos < 0 {
		return MoveResult{}, fmt.Errorf("move stop: index %d out of range for driver %d: %w", stopIndex, driverID, domain.ErrNotFound)
	}

	target := pos - 1
	if dir == Down {
		target = pos + 1
	}
	if target < 0 || target >= len(timeline) {
		return MoveResult{}, nil
	}

	s := timeline[pos].Stop
	buckets := domain.BucketStops(stops, n)
	neighbour := timeline[target]

	var writes map[int64]domain.StopPosition
	switch neighbour.Kind {
	case domain.KindOrder:
		k := orderPosition(timeline, target)
		if dir == Down {
			writes = placeStop(buckets[k], s, k, 0)
		} else {
			if k == 0 {
				return MoveResult{}, nil
			}
			writes = placeStop(buckets[k-1], s, k-1, len(buckets[k-1]))
		}

	case domain.KindStop:
		t := neighbour.Stop
		anchorS, anchorT := s.EffectiveAnchor(n), t.EffectiveAnchor(n)
		bucket := buckets[anchorT]
		tIdx := slices.IndexFunc(bucket, func(x *domain.Stop) bool { return x.ID == t.ID })

		switch {
		case anchorS == anchorT && s.Sequence != t.Sequence:
			writes = map[int64]domain.StopPosition{
				s.ID: {InsertAfterIndex: s.InsertAfterIndex, Sequence: t.Sequence},
				t.ID: {InsertAfterIndex: t.InsertAfterIndex, Sequence: s.Sequence},
			}
		case anchorS == anchorT:
			// Equal sequences rely on load order; renumber the bucket explicitly.
			sIdx := slices.IndexFunc(bucket, func(x *domain.Stop) bool { return x.ID == s.ID })
			reordered := slices.Clone(bucket)
			reordered[sIdx], reordered[tIdx] = reordered[tIdx], reordered[sIdx]
			writes = renumber(reordered, s, s.InsertAfterIndex)
		case dir == Down:
			writes = placeStop(bucket, s, anchorT, tIdx+1)
		default:
			writes = placeStop(bucket, s, anchorT, tIdx)
		}
	}

	if err := m.writeStopPositions(ctx, writes); err != nil {
		return MoveResult{}, fmt.Errorf("move stop %d: %w", s.ID, err)
	}

	return MoveResult{Moved: true}, nil
}

// orderPosition returns the position of the order at timeline[at] in the order list.
func orderPosition(timeline []domain.TimelineItem, at int) int {
	k := 0
	for _, it := range timeline[:at] {
		if it.Kind == domain.KindOrder {
			k++
		}
	}
	return k
}

// placeStop inserts s into bucket at index and renumbers the bucket.
// s is removed from bucket first if already present.
func placeStop(bucket []*domain.Stop, s *domain.Stop, anchor, index int) map[int64]domain.StopPosition {
	list := slices.DeleteFunc(slices.Clone(bucket), func(x *domain.Stop) bool { return x.ID == s.ID })
	index = min(max(index, 0), len(list))
	list = slices.Insert(list, index, s)
	return renumber(list, s, anchor)
}

// renumber assigns sequences 0..n-1 in list order and returns the changed
// positions. moved takes anchor; the others keep their stored anchor.
func renumber(list []*domain.Stop, moved *domain.Stop, anchor int) map[int64]domain.StopPosition {
	writes := make(map[int64]domain.StopPosition)
	for i, st := range list {
		a := st.InsertAfterIndex
		if st.ID == moved.ID {
			a = anchor
		}
		if a != st.InsertAfterIndex || i != st.Sequence {
			writes[st.ID] = domain.StopPosition{InsertAfterIndex: a, Sequence: i}
		}
	}
	return writes
}

// nextSequence is the sequence that sorts after every stop in bucket.
// For densely numbered buckets it equals the bucket size.
func nextSequence(bucket []*domain.Stop) int {
	next := len(bucket)
	for _, s := range bucket {
		next = max(next, s.Sequence+1)
	}
	return next
}

// ReassignOrder moves an active order to another driver.
// The order joins the end of the destination route; no other order changes.
func (m *SequenceManager) ReassignOrder(ctx context.Context, orderID, fromDriverID, toDriverID int64) (err error) {
	defer obs.Time(ctx, "sequence.ReassignOrder")(&err)

	if fromDriverID == toDriverID {
		return fmt.Errorf("reassign order %d: source and target driver are both %d: %w", orderID, toDriverID, domain.ErrInvalidTransition)
	}

	o, err := m.lookupOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("reassign order %d: %w", orderID, err)
	}
	if o.Status.IsTerminal() {
		return fmt.Errorf("reassign order %d: status %s: %w", orderID, o.Status, domain.ErrInvalidTransition)
	}
	if !o.AssignedTo(fromDriverID) {
		return fmt.Errorf("reassign order %d: not assigned to driver %d: %w", orderID, fromDriverID, domain.ErrInvalidTransition)
	}

	if err := m.gw.UpdateOrderDriver(ctx, orderID, toDriverID); err != nil {
		// The order may have been finished or removed since the snapshot.
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("reassign order %d: %w", orderID, err)
		}
		return fmt.Errorf("reassign order %d: %w: %w", orderID, domain.ErrAdapterUnavailable, err)
	}
	return nil
}

// lookupOrder returns the order from the snapshot, falling back to the gateway
// for orders the snapshot leaves out, such as delivered or cancelled ones.
func (m *SequenceManager) lookupOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	if o, ok := m.store.Snapshot().FindOrder(orderID); ok {
		return o, nil
	}
	o, err := m.gw.GetOrder(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("get order: %w: %w", domain.ErrAdapterUnavailable, err)
	}
	return o, nil
}

// ReassignStop moves a stop to the end of another driver's route.
//
// On success the store snapshot is updated right away so the move is visible
// before the next Refresh.
func (m *SequenceManager) ReassignStop(ctx context.Context, stopID, fromDriverID, toDriverID int64) (err error) {
	defer obs.Time(ctx, "sequence.ReassignStop")(&err)

	if fromDriverID == toDriverID {
		return fmt.Errorf("reassign stop %d: source and target driver are both %d: %w", stopID, toDriverID, domain.ErrInvalidTransition)
	}

	snap := m.store.Snapshot()
	st, ok := snap.FindStop(stopID)
	if !ok {
		return fmt.Errorf("reassign stop %d: %w", stopID, domain.ErrNotFound)
	}
	if st.DriverID != fromDriverID {
		return fmt.Errorf("reassign stop %d: not owned by driver %d: %w", stopID, fromDriverID, domain.ErrInvalidTransition)
	}

	trailing := domain.BucketStops(snap.StopsFor(toDriverID), len(snap.OrdersFor(toDriverID)))[domain.AfterAllOrders]
	anchor := domain.AfterAllOrders
	sequence := nextSequence(trailing)
	patch := domain.StopPatch{DriverID: &toDriverID, InsertAfterIndex: &anchor, Sequence: &sequence}

	if err := m.gw.UpdateStop(ctx, stopID, patch); err != nil {
		return fmt.Errorf("reassign stop %d: %w: %w", stopID, domain.ErrAdapterUnavailable, err)
	}

	m.store.replace(snap.withStop(patch.Apply(st)))
	return nil
}

// CreateStop adds a stop at the end of the requested anchor's stops.
func (m *SequenceManager) CreateStop(ctx context.Context, in domain.NewStop) (_ *domain.Stop, err error) {
	defer obs.Time(ctx, "sequence.CreateStop")(&err)

	if in.DriverID <= 0 {
		return nil, fmt.Errorf("create stop: driver id must be positive: %w", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("create stop: name must be non-empty: %w", domain.ErrInvalidArgument)
	}
	if in.InsertAfterIndex < domain.AfterAllOrders {
		return nil, fmt.Errorf("create stop: insert after index %d: %w", in.InsertAfterIndex, domain.ErrInvalidArgument)
	}

	snap := m.store.Snapshot()
	stops := snap.StopsFor(in.DriverID)
	n := len(snap.OrdersFor(in.DriverID))
	probe := domain.Stop{InsertAfterIndex: in.InsertAfterIndex}
	in.Sequence = nextSequence(domain.BucketStops(stops, n)[probe.EffectiveAnchor(n)])

	created, err := m.gw.CreateStop(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create stop: %w: %w", domain.ErrAdapterUnavailable, err)
	}
	return created, nil
}

// UpdateStop changes a stop's descriptive fields or position.
// Ownership changes go through ReassignStop.
func (m *SequenceManager) UpdateStop(ctx context.Context, stopID int64, patch domain.StopPatch) (err error) {
	defer obs.Time(ctx, "sequence.UpdateStop")(&err)

	if patch.DriverID != nil {
		return fmt.Errorf("update stop %d: driver changes require reassignment: %w", stopID, domain.ErrInvalidArgument)
	}
	if patch.InsertAfterIndex != nil && *patch.InsertAfterIndex < domain.AfterAllOrders {
		return fmt.Errorf("update stop %d: insert after index %d: %w", stopID, *patch.InsertAfterIndex, domain.ErrInvalidArgument)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return fmt.Errorf("update stop %d: name must be non-empty: %w", stopID, domain.ErrInvalidArgument)
	}
	if patch.IsEmpty() {
		return nil
	}
	if _, ok := m.store.Snapshot().FindStop(stopID); !ok {
		return fmt.Errorf("update stop %d: %w", stopID, domain.ErrNotFound)
	}

	if err := m.gw.UpdateStop(ctx, stopID, patch); err != nil {
		return fmt.Errorf("update stop %d: %w: %w", stopID, domain.ErrAdapterUnavailable, err)
	}
	return nil
}

func (m *SequenceManager) DeleteStop(ctx context.Context, stopID int64) (err error) {
	defer obs.Time(ctx, "sequence.DeleteStop")(&err)

	if _, ok := m.store.Snapshot().FindStop(stopID); !ok {
		return fmt.Errorf("delete stop %d: %w", stopID, domain.ErrNotFound)
	}
	if err := m.gw.DeleteStop(ctx, stopID); err != nil {
		return fmt.Errorf("delete stop %d: %w: %w", stopID, domain.ErrAdapterUnavailable, err)
	}
	return nil
}

// ApplyOrder writes delivery sequences 0..n-1 following orderIDs.
// Every id must be an active order of the driver, listed once.
func (m *SequenceManager) ApplyOrder(ctx context.Context, driverID int64, orderIDs []int64) (err error) {
	defer obs.Time(ctx, "sequence.ApplyOrder")(&err)

	current := m.store.Snapshot().OrdersFor(driverID)
	known := make(map[int64]*domain.Order, len(current))
	for _, o := range current {
		known[o.ID] = o
	}

	writes := make(map[int64]int, len(orderIDs))
	for i, id := range orderIDs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("apply order: order %d not in driver %d route: %w", id, driverID, domain.ErrInvalidArgument)
		}
		if _, dup := writes[id]; dup {
			return fmt.Errorf("apply order: order %d listed twice: %w", id, domain.ErrInvalidArgument)
		}
		writes[id] = i
	}

	for id, s := range writes {
		if o := known[id]; o.DeliverySequence != nil && *o.DeliverySequence == s {
			delete(writes, id)
		}
	}

	if err := m.writeOrderSequences(ctx, writes); err != nil {
		return fmt.Errorf("apply order for driver %d: %w", driverID, err)
	}
	return nil
}

// NormalizeAnchors rewrites stops whose anchor points past the last order so
// they are stored as trailing stops, numbered in their displayed order.
// The driver's timeline is unchanged; it returns the number of stops written.
func (m *SequenceManager) NormalizeAnchors(ctx context.Context, driverID int64) (_ int, err error) {
	defer obs.Time(ctx, "sequence.NormalizeAnchors")(&err)

	snap := m.store.Snapshot()
	n := len(snap.OrdersFor(driverID))
	trailing := domain.BucketStops(snap.StopsFor(driverID), n)[domain.AfterAllOrders]

	dangling := slices.ContainsFunc(trailing, func(s *domain.Stop) bool { return s.InsertAfterIndex != domain.AfterAllOrders })
	if !dangling {
		return 0, nil
	}

	writes := make(map[int64]domain.StopPosition)
	for i, s := range trailing {
		if s.InsertAfterIndex != domain.AfterAllOrders || s.Sequence != i {
			writes[s.ID] = domain.StopPosition{InsertAfterIndex: domain.AfterAllOrders, Sequence: i}
		}
	}

	if err := m.writeStopPositions(ctx, writes); err != nil {
		return 0, fmt.Errorf("normalize anchors for driver %d: %w", driverID, err)
	}
	return len(writes), nil
}

// Prefer a single transaction when the gateway supports batched writes.
func (m *SequenceManager) writeOrderSequences(ctx context.Context, writes map[int64]int) error {
	if len(writes) == 0 {
		return nil
	}

	if bw, ok := m.gw.(ports.BatchSequenceWriter); ok {
		if err := bw.UpdateOrderSequences(ctx, writes); err != nil {
			return fmt.Errorf("persist order sequences: %w: %w", domain.ErrAdapterUnavailable, err)
		}
		return nil
	}

	for _, id := range sortedKeys(writes) {
		if err := m.gw.UpdateOrderSequence(ctx, id, writes[id]); err != nil {
			return fmt.Errorf("persist order %d sequence: %w: %w", id, domain.ErrAdapterUnavailable, err)
		}
	}
	return nil
}

func (m *SequenceManager) writeStopPositions(ctx context.Context, writes map[int64]domain.StopPosition) error {
	if len(writes) == 0 {
		return nil
	}

	if bw, ok := m.gw.(ports.BatchSequenceWriter); ok {
		if err := bw.UpdateStopPositions(ctx, writes); err != nil {
			return fmt.Errorf("persist stop positions: %w: %w", domain.ErrAdapterUnavailable, err)
		}
		return nil
	}

	for _, id := range sortedKeys(writes) {
		p := writes[id]
		patch := domain.StopPatch{InsertAfterIndex: &p.InsertAfterIndex, Sequence: &p.Sequence}
		if err := m.gw.UpdateStop(ctx, id, patch); err != nil {
			return fmt.Errorf("persist stop %d position: %w: %w", id, domain.ErrAdapterUnavailable, err)
		}
	}
	return nil
}
