package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/app"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/outbox"
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements app.Store over one pgx transaction per unit of work.
// The ledger row, the aggregate rows and the outbox entries all commit
// together or roll back together.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = pgtx.Rollback(ctx) }()
	if err := fn(ctx, &txHandle{tx: pgtx}); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

type txHandle struct {
	tx pgx.Tx
}

func (t *txHandle) Orders() app.OrderRepository { return &Orders{q: t.tx} }
func (t *txHandle) Buyers() app.BuyerReader     { return &Buyers{q: t.tx} }
func (t *txHandle) Ledger() app.RequestLedger   { return &Ledger{q: t.tx} }
func (t *txHandle) Outbox() app.OutboxQueue     { return &outboxQueue{q: t.tx} }

type outboxQueue struct {
	q outbox.Querier
}

func (o *outboxQueue) Enqueue(ctx context.Context, evt contracts.Event) error {
	return outbox.Enqueue(ctx, o.q, evt)
}
