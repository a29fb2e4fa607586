package domain

import "testing"

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderPending:   false,
		OrderAssigned:  false,
		OrderPickedUp:  false,
		OrderInTransit: false,
		OrderDelivered: true,
		OrderCancelled: true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
		if !status.Valid() {
			t.Errorf("%s should be valid", status)
		}
	}
	if OrderStatus("lost").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestOrderHasFixedAddress(t *testing.T) {
	cases := map[string]bool{
		"1901 W Madison St": true,
		NoFixedAddress:      false,
		"   ":               false,
	}
	for addr, want := range cases {
		o := &Order{DeliveryAddress: addr}
		if got := o.HasFixedAddress(); got != want {
			t.Errorf("HasFixedAddress(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestOrderClone(t *testing.T) {
	driver := int64(3)
	seq := 2
	o := &Order{ID: 1, DriverID: &driver, DeliverySequence: &seq}

	c := o.Clone()
	*c.DriverID = 9
	*c.DeliverySequence = 7

	if *o.DriverID != 3 || *o.DeliverySequence != 2 {
		t.Fatalf("clone shares pointers with original: %+v", o)
	}
}
