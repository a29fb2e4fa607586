package domain

import "time"

// AfterAllOrders is the anchor value placing a stop after every order of its driver.
const AfterAllOrders = -1

// Stop is an ad-hoc waypoint inserted into a driver's route.
//
// InsertAfterIndex anchors the stop right after the order at that zero-based
// position in the driver's sorted order list, or AfterAllOrders. Sequence
// orders stops that share an anchor; lower sorts earlier.
type Stop struct {
	ID               int64
	DriverID         int64
	Name             string
	Location         string
	Instruction      string
	Payment          float64
	InsertAfterIndex int
	Sequence         int
	CreatedAt        time.Time
}

// EffectiveAnchor resolves the stored anchor against the current order count.
// Anchors past the last order behave as AfterAllOrders.
func (s *Stop) EffectiveAnchor(orderCount int) int {
	if s.InsertAfterIndex < 0 || s.InsertAfterIndex >= orderCount {
		return AfterAllOrders
	}
	return s.InsertAfterIndex
}

func (s *Stop) Clone() *Stop {
	c := *s
	return &c
}

// NewStop carries the caller-supplied fields for stop creation.
// Sequence is computed by the sequence manager.
type NewStop struct {
	DriverID         int64
	Name             string
	Location         string
	Instruction      string
	Payment          float64
	InsertAfterIndex int
	Sequence         int
}

// StopPatch lists the stop fields to change; nil fields are left as is.
type StopPatch struct {
	DriverID         *int64
	Name             *string
	Location         *string
	Instruction      *string
	Payment          *float64
	InsertAfterIndex *int
	Sequence         *int
}

// IsEmpty reports whether the patch changes nothing.
func (p StopPatch) IsEmpty() bool {
	return p.DriverID == nil && p.Name == nil && p.Location == nil && p.Instruction == nil &&
		p.Payment == nil && p.InsertAfterIndex == nil && p.Sequence == nil
}

// Apply returns a copy of s with the patch applied.
func (p StopPatch) Apply(s *Stop) *Stop {
	c := s.Clone()
	if p.DriverID != nil {
		c.DriverID = *p.DriverID
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Instruction != nil {
		c.Instruction = *p.Instruction
	}
	if p.Payment != nil {
		c.Payment = *p.Payment
	}
	if p.InsertAfterIndex != nil {
		c.InsertAfterIndex = *p.InsertAfterIndex
	}
	if p.Sequence != nil {
		c.Sequence = *p.Sequence
	}
	return c
}

// StopPosition is a stop's anchor and sequence, written together.
type StopPosition struct {
	InsertAfterIndex int
	Sequence         int
}
