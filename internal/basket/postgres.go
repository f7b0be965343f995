package basket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Get(ctx context.Context, buyerID string) (*CustomerBasket, error) {
	var items []byte
	err := r.pool.QueryRow(ctx, `SELECT items FROM baskets WHERE buyer_id=$1`, buyerID).Scan(&items)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b := &CustomerBasket{BuyerID: buyerID}
	if err := json.Unmarshal(items, &b.Items); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PgRepository) Replace(ctx context.Context, b *CustomerBasket) error {
	items, err := json.Marshal(b.Items)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO baskets(buyer_id, items) VALUES ($1, $2)
		ON CONFLICT (buyer_id) DO UPDATE SET items=EXCLUDED.items, updated_at=now()`, b.BuyerID, items)
	return err
}

func (r *PgRepository) Delete(ctx context.Context, buyerID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM baskets WHERE buyer_id=$1`, buyerID)
	return err
}
