package app

import (
	"context"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
)

type OrderRepository interface {
	Add(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
}

type BuyerReader interface {
	// FindByID returns (nil, nil) when the buyer does not exist.
	FindByID(ctx context.Context, id domain.BuyerID) (*domain.Buyer, error)
}

type BeginState int

const (
	BeginNew BeginState = iota
	BeginInFlight
	BeginCompleted
)

type BeginResult struct {
	State  BeginState
	Result []byte
}

// RequestLedger records one row per (request id, command type).
// TryBegin is the serialization point for concurrent duplicates: the
// insert-if-absent must be atomic.
type RequestLedger interface {
	TryBegin(ctx context.Context, requestID, commandType string) (BeginResult, error)
	Complete(ctx context.Context, requestID, commandType string, result []byte) error
}

type OutboxQueue interface {
	Enqueue(ctx context.Context, evt contracts.Event) error
}

// Tx bundles the repositories bound to one transaction. Everything done
// through it commits together or not at all.
type Tx interface {
	Orders() OrderRepository
	Buyers() BuyerReader
	Ledger() RequestLedger
	Outbox() OutboxQueue
}

type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
