package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
)

// Buyers is a read-only view into the buyer bounded context.
type Buyers struct {
	q querier
}

func (r *Buyers) FindByID(ctx context.Context, id domain.BuyerID) (*domain.Buyer, error) {
	b := &domain.Buyer{ID: id}
	err := r.q.QueryRow(ctx, `SELECT identity_guid, name FROM buyers WHERE id=$1`, id).
		Scan(&b.IdentityGUID, &b.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
