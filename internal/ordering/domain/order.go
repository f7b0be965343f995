package domain

import (
	"errors"
	"fmt"
	"time"
)

type OrderID string
type ProductID string
type BuyerID string

type Status string

const (
	StatusSubmitted          Status = "SUBMITTED"
	StatusAwaitingValidation Status = "AWAITING_VALIDATION"
	StatusStockConfirmed     Status = "STOCK_CONFIRMED"
	StatusPaid               Status = "PAID"
	StatusShipped            Status = "SHIPPED"
	StatusCancelled          Status = "CANCELLED"
)

var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrValidation        = errors.New("validation")
)

// Address is an immutable shipping address, set once at construction.
type Address struct {
	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

// PaymentCard is write-once; Number must already be masked by the caller.
type PaymentCard struct {
	Type       string
	Number     string
	Holder     string
	Expiration time.Time
}

type OrderItem struct {
	ProductID   ProductID
	ProductName string
	UnitPrice   int64
	Discount    int64
	Quantity    int32
}

func (i OrderItem) lineTotal() int64 {
	return i.UnitPrice*int64(i.Quantity) - i.Discount
}

// Order is the aggregate root. All mutation goes through the named
// transition methods; each successful transition appends a domain event
// to be drained by the pipeline within the same transaction.
type Order struct {
	ID          OrderID
	BuyerID     BuyerID
	BuyerName   string
	Address     Address
	Card        PaymentCard
	OrderDate   time.Time
	Status      Status
	Items       []OrderItem
	Description string

	events []Event
}

func NewOrder(id OrderID, buyerID BuyerID, buyerName string, addr Address, card PaymentCard) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if buyerID == "" {
		return nil, fmt.Errorf("%w: buyer id is required", ErrValidation)
	}
	o := &Order{
		ID:        id,
		BuyerID:   buyerID,
		BuyerName: buyerName,
		Address:   addr,
		Card:      card,
		OrderDate: time.Now().UTC(),
		Status:    StatusSubmitted,
	}
	o.record(EventOrderStarted)
	return o, nil
}

// Restore rebuilds an aggregate from storage without emitting events.
func Restore(id OrderID, buyerID BuyerID, buyerName string, addr Address, card PaymentCard,
	orderDate time.Time, status Status, items []OrderItem, description string) *Order {
	return &Order{
		ID:          id,
		BuyerID:     buyerID,
		BuyerName:   buyerName,
		Address:     addr,
		Card:        card,
		OrderDate:   orderDate,
		Status:      status,
		Items:       items,
		Description: description,
	}
}

// AddOrderItem is only legal while the order is Submitted. A duplicate
// product merges into the existing line: quantities sum, the higher
// discount wins.
func (o *Order) AddOrderItem(productID ProductID, name string, unitPrice, discount int64, qty int32) error {
	if o.Status != StatusSubmitted {
		return o.transitionErr("AddOrderItem", o.Status)
	}
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrValidation)
	}
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if unitPrice < 0 || discount < 0 {
		return fmt.Errorf("%w: price and discount must not be negative", ErrValidation)
	}
	for idx := range o.Items {
		if o.Items[idx].ProductID != productID {
			continue
		}
		merged := o.Items[idx]
		merged.Quantity += qty
		if discount > merged.Discount {
			merged.Discount = discount
		}
		if merged.lineTotal() < 0 {
			return fmt.Errorf("%w: discount exceeds line total", ErrValidation)
		}
		o.Items[idx] = merged
		return nil
	}
	item := OrderItem{ProductID: productID, ProductName: name, UnitPrice: unitPrice, Discount: discount, Quantity: qty}
	if item.lineTotal() < 0 {
		return fmt.Errorf("%w: discount exceeds line total", ErrValidation)
	}
	o.Items = append(o.Items, item)
	return nil
}

// Total is derived, never stored.
func (o *Order) Total() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.lineTotal()
	}
	return total
}

func (o *Order) SetAwaitingValidation() error {
	if o.Status != StatusSubmitted {
		return o.transitionErr("SetAwaitingValidation", StatusAwaitingValidation)
	}
	o.Status = StatusAwaitingValidation
	o.record(EventStatusChangedToAwaitingValidation)
	return nil
}

func (o *Order) SetStockConfirmed() error {
	if o.Status != StatusAwaitingValidation {
		return o.transitionErr("SetStockConfirmed", StatusStockConfirmed)
	}
	o.Status = StatusStockConfirmed
	o.Description = "All the items were confirmed with available stock."
	o.record(EventStatusChangedToStockConfirmed)
	return nil
}

// MarkAsPaid accepts payment captured before or after the stock check:
// a capture that races ahead of stock confirmation implies the items
// were reservable, so AwaitingValidation is a legal source state too.
func (o *Order) MarkAsPaid() error {
	if o.Status != StatusStockConfirmed && o.Status != StatusAwaitingValidation {
		return o.transitionErr("MarkAsPaid", StatusPaid)
	}
	o.Status = StatusPaid
	o.Description = `The payment was performed at a simulated "American Bank checking bank account ending on XX35071"`
	o.record(EventStatusChangedToPaid)
	return nil
}

func (o *Order) Ship() error {
	if o.Status != StatusPaid {
		return o.transitionErr("Ship", StatusShipped)
	}
	o.Status = StatusShipped
	o.Description = "The order was shipped."
	o.record(EventStatusChangedToShipped)
	return nil
}

// Cancel is legal until stock is confirmed; a paid order must be
// refunded through a separate process, not cancelled in place.
func (o *Order) Cancel(reason string) error {
	switch o.Status {
	case StatusSubmitted, StatusAwaitingValidation, StatusStockConfirmed:
	default:
		return o.transitionErr("Cancel", StatusCancelled)
	}
	o.Status = StatusCancelled
	o.Description = "The order was cancelled."
	if reason != "" {
		o.Description = fmt.Sprintf("The order was cancelled: %s.", reason)
	}
	ev := o.newEvent(EventOrderCancelled)
	ev.Reason = reason
	o.events = append(o.events, ev)
	return nil
}

// Events returns the domain events recorded since the aggregate was
// loaded. The pipeline drains them and calls ClearEvents.
func (o *Order) Events() []Event {
	return o.events
}

func (o *Order) ClearEvents() {
	o.events = nil
}

func (o *Order) record(name EventName) {
	o.events = append(o.events, o.newEvent(name))
}

func (o *Order) newEvent(name EventName) Event {
	items := make([]OrderItem, len(o.Items))
	copy(items, o.Items)
	return Event{
		Name:       name,
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		Status:     o.Status,
		Items:      items,
		OccurredAt: time.Now().UTC(),
	}
}

func (o *Order) transitionErr(op string, to Status) error {
	return fmt.Errorf("%s: %s -> %s: %w", op, o.Status, to, ErrInvalidTransition)
}
