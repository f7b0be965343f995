package contracts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every integration event travels in. Consumers
// deduplicate on EventID; delivery is at-least-once.
type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OrderID    string          `json:"order_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

const (
	EventOrderStarted            = "ordering.order_started"
	EventOrderAwaitingValidation = "ordering.status_awaiting_validation"
	EventOrderStockConfirmed     = "ordering.status_stock_confirmed"
	EventOrderPaid               = "ordering.status_paid"
	EventOrderShipped            = "ordering.status_shipped"
	EventOrderCancelled          = "ordering.order_cancelled"
)

// Topic carries all ordering integration events, keyed by order id so
// per-order delivery stays in sequence.
const Topic = "ordering.events"

type StockItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type OrderStarted struct {
	UserID string `json:"user_id"`
}

type OrderStatusChanged struct {
	OrderID       string      `json:"order_id"`
	Status        string      `json:"status"`
	BuyerName     string      `json:"buyer_name,omitempty"`
	BuyerIdentity string      `json:"buyer_identity,omitempty"`
	StockItems    []StockItem `json:"stock_items,omitempty"`
	Reason        string      `json:"reason,omitempty"`
}

func New(eventType, orderID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}, nil
}
