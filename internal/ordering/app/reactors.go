package app

import (
	"context"
	"fmt"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
)

// Reactor translates one domain event into at most one integration
// event. It runs inside the transaction that persisted the aggregate,
// so a failing reactor rolls the whole mutation back.
type Reactor func(ctx context.Context, tx Tx, ev domain.Event) error

// ReactorSet is an explicit registry keyed by domain event variant; no
// reflection-based discovery.
type ReactorSet struct {
	reactors map[domain.EventName]Reactor
}

func NewReactorSet() *ReactorSet {
	return &ReactorSet{reactors: make(map[domain.EventName]Reactor)}
}

func (s *ReactorSet) Register(name domain.EventName, r Reactor) {
	s.reactors[name] = r
}

func (s *ReactorSet) Dispatch(ctx context.Context, tx Tx, ev domain.Event) error {
	r, ok := s.reactors[ev.Name]
	if !ok {
		return nil
	}
	return r(ctx, tx, ev)
}

func DefaultReactors() *ReactorSet {
	s := NewReactorSet()
	s.Register(domain.EventOrderStarted, orderStartedReactor)
	s.Register(domain.EventStatusChangedToAwaitingValidation, statusReactor(contracts.EventOrderAwaitingValidation, true))
	s.Register(domain.EventStatusChangedToStockConfirmed, statusReactor(contracts.EventOrderStockConfirmed, false))
	s.Register(domain.EventStatusChangedToPaid, paidReactor)
	s.Register(domain.EventStatusChangedToShipped, statusReactor(contracts.EventOrderShipped, false))
	s.Register(domain.EventOrderCancelled, cancelledReactor)
	return s
}

func orderStartedReactor(ctx context.Context, tx Tx, ev domain.Event) error {
	evt, err := contracts.New(contracts.EventOrderStarted, string(ev.OrderID),
		contracts.OrderStarted{UserID: string(ev.BuyerID)})
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, evt)
}

func statusReactor(eventType string, withStock bool) Reactor {
	return func(ctx context.Context, tx Tx, ev domain.Event) error {
		payload := contracts.OrderStatusChanged{
			OrderID: string(ev.OrderID),
			Status:  string(ev.Status),
		}
		if withStock {
			payload.StockItems = stockItems(ev.Items)
		}
		evt, err := contracts.New(eventType, string(ev.OrderID), payload)
		if err != nil {
			return err
		}
		return tx.Outbox().Enqueue(ctx, evt)
	}
}

// paidReactor needs buyer-facing display fields. A missing buyer makes
// the integration event malformed, so the whole transaction fails.
func paidReactor(ctx context.Context, tx Tx, ev domain.Event) error {
	buyer, err := tx.Buyers().FindByID(ctx, ev.BuyerID)
	if err != nil {
		return fmt.Errorf("load buyer %s: %w", ev.BuyerID, err)
	}
	if buyer == nil {
		return fmt.Errorf("buyer %s: %w", ev.BuyerID, ErrNotFound)
	}
	payload := contracts.OrderStatusChanged{
		OrderID:       string(ev.OrderID),
		Status:        string(ev.Status),
		BuyerName:     buyer.Name,
		BuyerIdentity: buyer.IdentityGUID,
		StockItems:    stockItems(ev.Items),
	}
	evt, err := contracts.New(contracts.EventOrderPaid, string(ev.OrderID), payload)
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, evt)
}

func cancelledReactor(ctx context.Context, tx Tx, ev domain.Event) error {
	payload := contracts.OrderStatusChanged{
		OrderID: string(ev.OrderID),
		Status:  string(ev.Status),
		Reason:  ev.Reason,
	}
	evt, err := contracts.New(contracts.EventOrderCancelled, string(ev.OrderID), payload)
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, evt)
}

func stockItems(items []domain.OrderItem) []contracts.StockItem {
	out := make([]contracts.StockItem, 0, len(items))
	for _, it := range items {
		out = append(out, contracts.StockItem{ProductID: string(it.ProductID), Quantity: it.Quantity})
	}
	return out
}
