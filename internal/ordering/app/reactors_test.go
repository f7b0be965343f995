package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
)

func TestDispatchIgnoresUnregisteredVariants(t *testing.T) {
	st := newMemStore()
	set := NewReactorSet()
	err := st.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return set.Dispatch(ctx, tx, domain.Event{Name: "something_else", OrderID: "o-1"})
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(st.outbox) != 0 {
		t.Fatalf("unregistered variant produced an event")
	}
}

func TestAwaitingValidationCarriesStockItems(t *testing.T) {
	st := newMemStore()
	set := DefaultReactors()
	ev := domain.Event{
		Name:    domain.EventStatusChangedToAwaitingValidation,
		OrderID: "o-1",
		BuyerID: "buyer-42",
		Status:  domain.StatusAwaitingValidation,
		Items: []domain.OrderItem{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 1},
		},
		OccurredAt: time.Now(),
	}
	err := st.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return set.Dispatch(ctx, tx, ev)
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(st.outbox) != 1 {
		t.Fatalf("outbox = %d, want 1", len(st.outbox))
	}
	var payload contracts.OrderStatusChanged
	if err := json.Unmarshal(st.outbox[0].Payload, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.StockItems) != 2 {
		t.Fatalf("stock items = %+v, want the per-item decrement list", payload.StockItems)
	}
}

func TestPaidReactorFailsWithoutBuyer(t *testing.T) {
	st := newMemStore()
	set := DefaultReactors()
	ev := domain.Event{
		Name:    domain.EventStatusChangedToPaid,
		OrderID: "o-1",
		BuyerID: "nobody",
		Status:  domain.StatusPaid,
	}
	err := st.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return set.Dispatch(ctx, tx, ev)
	})
	if err == nil {
		t.Fatalf("expected the reactor to fail for a missing buyer")
	}
	if len(st.outbox) != 0 {
		t.Fatalf("a partial paid event was enqueued")
	}
}
