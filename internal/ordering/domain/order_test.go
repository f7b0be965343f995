package domain

import (
	"errors"
	"testing"
)

func newSubmitted(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("order-1", "buyer-42", "John",
		Address{Street: "1 Main St", City: "Porto", Country: "PT", ZipCode: "4000"},
		PaymentCard{Type: "visa", Number: "****1881", Holder: "John"})
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return o
}

func atStatus(t *testing.T, target Status) *Order {
	t.Helper()
	o := newSubmitted(t)
	if target == StatusCancelled {
		if err := o.Cancel("test"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		o.ClearEvents()
		return o
	}
	steps := map[Status]func() error{
		StatusAwaitingValidation: o.SetAwaitingValidation,
		StatusStockConfirmed:     o.SetStockConfirmed,
		StatusPaid:               o.MarkAsPaid,
		StatusShipped:            o.Ship,
	}
	for _, s := range []Status{StatusAwaitingValidation, StatusStockConfirmed, StatusPaid, StatusShipped} {
		if o.Status == target {
			break
		}
		if err := steps[s](); err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
	}
	if o.Status != target {
		t.Fatalf("setup reached %s, want %s", o.Status, target)
	}
	o.ClearEvents()
	return o
}

func TestNewOrder(t *testing.T) {
	o := newSubmitted(t)
	if o.Status != StatusSubmitted {
		t.Fatalf("status = %s, want %s", o.Status, StatusSubmitted)
	}
	evs := o.Events()
	if len(evs) != 1 || evs[0].Name != EventOrderStarted {
		t.Fatalf("events = %+v, want one %s", evs, EventOrderStarted)
	}
	if _, err := NewOrder("order-1", "", "", Address{}, PaymentCard{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing buyer: err = %v, want ErrValidation", err)
	}
}

func TestTransitionLegality(t *testing.T) {
	tests := []struct {
		name string
		from Status
		call func(*Order) error
		ok   bool
	}{
		{"awaiting validation from submitted", StatusSubmitted, (*Order).SetAwaitingValidation, true},
		{"awaiting validation from paid", StatusPaid, (*Order).SetAwaitingValidation, false},
		{"stock confirmed from awaiting validation", StatusAwaitingValidation, (*Order).SetStockConfirmed, true},
		{"stock confirmed from submitted", StatusSubmitted, (*Order).SetStockConfirmed, false},
		{"paid from stock confirmed", StatusStockConfirmed, (*Order).MarkAsPaid, true},
		{"paid from awaiting validation", StatusAwaitingValidation, (*Order).MarkAsPaid, true},
		{"paid from shipped", StatusShipped, (*Order).MarkAsPaid, false},
		{"paid from cancelled", StatusCancelled, (*Order).MarkAsPaid, false},
		{"shipped from paid", StatusPaid, (*Order).Ship, true},
		{"shipped from stock confirmed", StatusStockConfirmed, (*Order).Ship, false},
		{"cancel from submitted", StatusSubmitted, func(o *Order) error { return o.Cancel("") }, true},
		{"cancel from awaiting validation", StatusAwaitingValidation, func(o *Order) error { return o.Cancel("") }, true},
		{"cancel from stock confirmed", StatusStockConfirmed, func(o *Order) error { return o.Cancel("") }, true},
		{"cancel from paid", StatusPaid, func(o *Order) error { return o.Cancel("") }, false},
		{"cancel from shipped", StatusShipped, func(o *Order) error { return o.Cancel("") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := atStatus(t, tt.from)
			err := tt.call(o)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(o.Events()) != 1 {
					t.Fatalf("events = %d, want exactly 1", len(o.Events()))
				}
				return
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			if o.Status != tt.from {
				t.Fatalf("status mutated to %s on failed transition", o.Status)
			}
			if len(o.Events()) != 0 {
				t.Fatalf("failed transition appended events: %+v", o.Events())
			}
		})
	}
}

func TestAddOrderItemMergesDuplicates(t *testing.T) {
	o := newSubmitted(t)
	if err := o.AddOrderItem("p-1", "Mug", 100, 0, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := o.AddOrderItem("p-1", "Mug", 100, 10, 3); err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if len(o.Items) != 1 {
		t.Fatalf("items = %d, want 1 merged line", len(o.Items))
	}
	it := o.Items[0]
	if it.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", it.Quantity)
	}
	if it.Discount != 10 {
		t.Fatalf("discount = %d, want the higher one (10)", it.Discount)
	}
	if got := o.Total(); got != 100*5-10 {
		t.Fatalf("total = %d, want %d", got, 100*5-10)
	}
}

func TestAddOrderItemValidation(t *testing.T) {
	o := newSubmitted(t)
	if err := o.AddOrderItem("p-1", "Mug", 100, 0, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero quantity: err = %v, want ErrValidation", err)
	}
	if err := o.AddOrderItem("", "Mug", 100, 0, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty product: err = %v, want ErrValidation", err)
	}
	if err := o.AddOrderItem("p-1", "Mug", 10, 100, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("discount over line total: err = %v, want ErrValidation", err)
	}

	if err := o.SetAwaitingValidation(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := o.AddOrderItem("p-2", "Shirt", 50, 0, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("add after submitted: err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelReason(t *testing.T) {
	o := newSubmitted(t)
	o.ClearEvents()
	if err := o.Cancel("stock rejected"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	evs := o.Events()
	if len(evs) != 1 || evs[0].Name != EventOrderCancelled {
		t.Fatalf("events = %+v, want one %s", evs, EventOrderCancelled)
	}
	if evs[0].Reason != "stock rejected" {
		t.Fatalf("reason = %q", evs[0].Reason)
	}
}

func TestEventSnapshotIsolation(t *testing.T) {
	o := newSubmitted(t)
	if err := o.AddOrderItem("p-1", "Mug", 100, 0, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	o.ClearEvents()
	if err := o.SetAwaitingValidation(); err != nil {
		t.Fatalf("transition: %v", err)
	}
	ev := o.Events()[0]
	if len(ev.Items) != 1 || ev.Items[0].Quantity != 2 {
		t.Fatalf("event items = %+v, want snapshot of the one line", ev.Items)
	}
	ev.Items[0].Quantity = 99
	if o.Items[0].Quantity != 2 {
		t.Fatalf("mutating the event snapshot leaked into the aggregate")
	}
}
