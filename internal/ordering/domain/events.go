package domain

import "time"

// EventName tags a domain event variant. Domain events are in-process
// notifications consumed by reactors inside the same transaction; they
// are distinct from the integration events written to the outbox.
type EventName string

const (
	EventOrderStarted                      EventName = "order_started"
	EventStatusChangedToAwaitingValidation EventName = "status_changed_to_awaiting_validation"
	EventStatusChangedToStockConfirmed     EventName = "status_changed_to_stock_confirmed"
	EventStatusChangedToPaid               EventName = "status_changed_to_paid"
	EventStatusChangedToShipped            EventName = "status_changed_to_shipped"
	EventOrderCancelled                    EventName = "order_cancelled"
)

// Event carries a snapshot of the aggregate at transition time, enough
// for any reactor to build its integration event without re-reading the
// order.
type Event struct {
	Name       EventName
	OrderID    OrderID
	BuyerID    BuyerID
	Status     Status
	Items      []OrderItem
	Reason     string
	OccurredAt time.Time
}
