package app

import (
	"context"
	"sync"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
)

// memStore is an in-memory Store for tests. Writes are staged per
// transaction and applied on commit, so a failing handler leaves the
// committed state untouched.
type memStore struct {
	mu     sync.Mutex
	orders map[domain.OrderID]*domain.Order
	buyers map[domain.BuyerID]*domain.Buyer
	ledger map[string]*ledgerRow
	outbox []contracts.Event
}

type ledgerRow struct {
	completed bool
	result    []byte
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[domain.OrderID]*domain.Order),
		buyers: make(map[domain.BuyerID]*domain.Buyer),
		ledger: make(map[string]*ledgerRow),
	}
}

func ledgerKey(requestID, commandType string) string {
	return requestID + "|" + commandType
}

func (s *memStore) addBuyer(b *domain.Buyer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[b.ID] = b
}

// setInFlight plants an uncompleted ledger row, simulating a concurrent
// attempt that has claimed the key but not finished.
func (s *memStore) setInFlight(requestID, commandType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[ledgerKey(requestID, commandType)] = &ledgerRow{}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{st: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	st *memStore

	staged      []*domain.Order
	ledgerBegun []string
	ledgerDone  map[string][]byte
	events      []contracts.Event
}

func (t *memTx) Orders() OrderRepository { return (*memOrders)(t) }
func (t *memTx) Buyers() BuyerReader     { return (*memBuyers)(t) }
func (t *memTx) Ledger() RequestLedger   { return (*memLedger)(t) }
func (t *memTx) Outbox() OutboxQueue     { return (*memOutbox)(t) }

func (t *memTx) commit() {
	for _, o := range t.staged {
		clone := *o
		t.st.orders[o.ID] = &clone
	}
	for _, k := range t.ledgerBegun {
		t.st.ledger[k] = &ledgerRow{}
	}
	for k, res := range t.ledgerDone {
		t.st.ledger[k] = &ledgerRow{completed: true, result: res}
	}
	t.st.outbox = append(t.st.outbox, t.events...)
}

type memOrders memTx

func (r *memOrders) Add(ctx context.Context, o *domain.Order) error {
	r.staged = append(r.staged, o)
	return nil
}

func (r *memOrders) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	for _, o := range r.staged {
		if o.ID == id {
			return o, nil
		}
	}
	o, ok := r.st.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	return &clone, nil
}

func (r *memOrders) Update(ctx context.Context, o *domain.Order) error {
	r.staged = append(r.staged, o)
	return nil
}

type memBuyers memTx

func (r *memBuyers) FindByID(ctx context.Context, id domain.BuyerID) (*domain.Buyer, error) {
	b, ok := r.st.buyers[id]
	if !ok {
		return nil, nil
	}
	return b, nil
}

type memLedger memTx

func (l *memLedger) TryBegin(ctx context.Context, requestID, commandType string) (BeginResult, error) {
	k := ledgerKey(requestID, commandType)
	if row, ok := l.st.ledger[k]; ok {
		if row.completed {
			return BeginResult{State: BeginCompleted, Result: row.result}, nil
		}
		return BeginResult{State: BeginInFlight}, nil
	}
	l.ledgerBegun = append(l.ledgerBegun, k)
	return BeginResult{State: BeginNew}, nil
}

func (l *memLedger) Complete(ctx context.Context, requestID, commandType string, result []byte) error {
	if l.ledgerDone == nil {
		l.ledgerDone = make(map[string][]byte)
	}
	l.ledgerDone[ledgerKey(requestID, commandType)] = result
	return nil
}

type memOutbox memTx

func (o *memOutbox) Enqueue(ctx context.Context, evt contracts.Event) error {
	o.events = append(o.events, evt)
	return nil
}
