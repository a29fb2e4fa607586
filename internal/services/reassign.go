package services

import (
	"context"
	"fleet-sequencing-service/internal/domain"
	"fmt"
)

// DragItem identifies the timeline item an operator dropped onto a driver.
type DragItem struct {
	Kind domain.ItemKind
	ID   int64
}

// DragReassigner turns a drop onto a driver column into exactly one
// reassignment, then reloads the store.
type DragReassigner struct {
	store *RouteStore
	seq   *SequenceManager
}

func NewDragReassigner(store *RouteStore, seq *SequenceManager) *DragReassigner {
	return &DragReassigner{store: store, seq: seq}
}

// Drop reassigns item to targetDriverID. Dropping an item on its own driver
// does nothing and reports false.
func (h *DragReassigner) Drop(ctx context.Context, item DragItem, targetDriverID int64) (bool, error) {
	if targetDriverID <= 0 {
		return false, fmt.Errorf("drop: target driver id must be positive: %w", domain.ErrInvalidArgument)
	}

	switch item.Kind {
	case domain.KindOrder:
		o, err := h.seq.lookupOrder(ctx, item.ID)
		if err != nil {
			return false, fmt.Errorf("drop order %d: %w", item.ID, err)
		}
		if o.Status.IsTerminal() {
			return false, fmt.Errorf("drop order %d: status %s: %w", item.ID, o.Status, domain.ErrInvalidTransition)
		}
		if o.DriverID == nil {
			return false, fmt.Errorf("drop order %d: unassigned: %w", item.ID, domain.ErrInvalidTransition)
		}
		source := *o.DriverID
		if source == targetDriverID {
			return false, nil
		}
		if err := h.seq.ReassignOrder(ctx, item.ID, source, targetDriverID); err != nil {
			return false, fmt.Errorf("drop: %w", err)
		}

	case domain.KindStop:
		st, ok := h.store.Snapshot().FindStop(item.ID)
		if !ok {
			return false, fmt.Errorf("drop stop %d: %w", item.ID, domain.ErrNotFound)
		}
		if st.DriverID == targetDriverID {
			return false, nil
		}
		if err := h.seq.ReassignStop(ctx, item.ID, st.DriverID, targetDriverID); err != nil {
			return false, fmt.Errorf("drop: %w", err)
		}

	default:
		return false, fmt.Errorf("drop: unknown item kind %q: %w", item.Kind, domain.ErrInvalidArgument)
	}

	if err := h.seq.Refresh(ctx); err != nil {
		return true, fmt.Errorf("drop: refresh: %w", err)
	}
	return true, nil
}
