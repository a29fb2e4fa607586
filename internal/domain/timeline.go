package domain

import (
	"cmp"
	"slices"
)

type ItemKind string

const (
	KindOrder ItemKind = "order"
	KindStop  ItemKind = "stop"
)

// TimelineItem is one entry of a driver's visiting order.
// Exactly one of Order or Stop is set, matching Kind.
type TimelineItem struct {
	Kind  ItemKind
	Order *Order
	Stop  *Stop
}

func (it TimelineItem) ID() int64 {
	if it.Kind == KindOrder {
		return it.Order.ID
	}
	return it.Stop.ID
}

// SortOrders returns the orders in route order without modifying the input.
//
// Sequenced orders come first by DeliverySequence; unsequenced orders follow,
// oldest first. Remaining ties fall back to CreatedAt and then ID so the result
// is a total order.
func SortOrders(orders []*Order) []*Order {
	out := slices.Clone(orders)
	slices.SortStableFunc(out, func(a, b *Order) int {
		switch {
		case a.DeliverySequence != nil && b.DeliverySequence == nil:
			return -1
		case a.DeliverySequence == nil && b.DeliverySequence != nil:
			return 1
		case a.DeliverySequence != nil && b.DeliverySequence != nil:
			if c := cmp.Compare(*a.DeliverySequence, *b.DeliverySequence); c != 0 {
				return c
			}
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// SortStops orders stops by Sequence, keeping input order on ties.
func SortStops(stops []*Stop) []*Stop {
	out := slices.Clone(stops)
	slices.SortStableFunc(out, func(a, b *Stop) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return out
}

// BucketStops groups stops by effective anchor for a route with orderCount orders.
// Each bucket is sorted by Sequence.
func BucketStops(stops []*Stop, orderCount int) map[int][]*Stop {
	buckets := make(map[int][]*Stop)
	for _, s := range stops {
		a := s.EffectiveAnchor(orderCount)
		buckets[a] = append(buckets[a], s)
	}
	for a, b := range buckets {
		buckets[a] = SortStops(b)
	}
	return buckets
}

// BuildTimeline merges one driver's orders and stops into visiting order.
//
// Orders are sorted with SortOrders. After the order at position i come the
// stops anchored at i; stops anchored at AfterAllOrders, or at a position that
// no longer exists, come last.
func BuildTimeline(orders []*Order, stops []*Stop) []TimelineItem {
	sorted := SortOrders(orders)
	buckets := BucketStops(stops, len(sorted))

	items := make([]TimelineItem, 0, len(sorted)+len(stops))
	for i, o := range sorted {
		items = append(items, TimelineItem{Kind: KindOrder, Order: o})
		for _, s := range buckets[i] {
			items = append(items, TimelineItem{Kind: KindStop, Stop: s})
		}
	}
	for _, s := range buckets[AfterAllOrders] {
		items = append(items, TimelineItem{Kind: KindStop, Stop: s})
	}

	return items
}
