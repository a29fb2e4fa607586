package domain

import (
	"strings"
	"time"
)

// NoFixedAddress marks an order without a deliverable address.
// Such orders stay on the timeline but are never geocoded or optimized.
const NoFixedAddress = "NO_FIXED_ADDRESS"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAssigned  OrderStatus = "assigned"
	OrderPickedUp  OrderStatus = "picked_up"
	OrderInTransit OrderStatus = "in_transit"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether the status removes an order from active routes.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderAssigned, OrderPickedUp, OrderInTransit, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Represents the routing-relevant subset of a delivery order.
// A nil DriverID means the order is unassigned and part of no route.
// A nil DeliverySequence sorts after sequenced orders, by CreatedAt.
type Order struct {
	ID               int64
	DeliveryAddress  string
	DriverID         *int64
	DeliverySequence *int
	Status           OrderStatus
	CreatedAt        time.Time
}

// HasFixedAddress reports whether the order can be geocoded.
func (o *Order) HasFixedAddress() bool {
	a := strings.TrimSpace(o.DeliveryAddress)
	return a != "" && a != NoFixedAddress
}

// AssignedTo reports whether the order currently belongs to driverID.
func (o *Order) AssignedTo(driverID int64) bool {
	return o.DriverID != nil && *o.DriverID == driverID
}

// Clone returns a deep copy so snapshots never share mutable pointers.
func (o *Order) Clone() *Order {
	c := *o
	if o.DriverID != nil {
		id := *o.DriverID
		c.DriverID = &id
	}
	if o.DeliverySequence != nil {
		seq := *o.DeliverySequence
		c.DeliverySequence = &seq
	}
	return &c
}
