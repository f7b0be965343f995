package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
)

type Orders struct {
	q querier
}

func (r *Orders) Add(ctx context.Context, o *domain.Order) error {
	var exp *time.Time
	if !o.Card.Expiration.IsZero() {
		exp = &o.Card.Expiration
	}
	_, err := r.q.Exec(ctx, `INSERT INTO orders(
			id, buyer_id, buyer_name,
			street, city, state, country, zip_code,
			card_type, card_number, card_holder, card_expiration,
			order_date, status, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.BuyerID, o.BuyerName,
		o.Address.Street, o.Address.City, o.Address.State, o.Address.Country, o.Address.ZipCode,
		o.Card.Type, o.Card.Number, o.Card.Holder, exp,
		o.OrderDate, o.Status, o.Description)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err = r.q.Exec(ctx, `INSERT INTO order_items(order_id, product_id, product_name, unit_price, discount, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.ProductID, it.ProductName, it.UnitPrice, it.Discount, it.Quantity)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Orders) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	var (
		buyerID     domain.BuyerID
		buyerName   string
		addr        domain.Address
		card        domain.PaymentCard
		exp         *time.Time
		orderDate   time.Time
		status      domain.Status
		description string
	)
	err := r.q.QueryRow(ctx, `SELECT buyer_id, buyer_name,
			street, city, state, country, zip_code,
			card_type, card_number, card_holder, card_expiration,
			order_date, status, description
		FROM orders WHERE id=$1`, id).Scan(
		&buyerID, &buyerName,
		&addr.Street, &addr.City, &addr.State, &addr.Country, &addr.ZipCode,
		&card.Type, &card.Number, &card.Holder, &exp,
		&orderDate, &status, &description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if exp != nil {
		card.Expiration = *exp
	}

	rows, err := r.q.Query(ctx, `SELECT product_id, product_name, unit_price, discount, quantity
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.UnitPrice, &it.Discount, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return domain.Restore(id, buyerID, buyerName, addr, card, orderDate, status, items, description), nil
}

// Update persists the mutable part of the aggregate. Address, card and
// items are write-once and never touched here.
func (r *Orders) Update(ctx context.Context, o *domain.Order) error {
	_, err := r.q.Exec(ctx, `UPDATE orders SET status=$2, description=$3, updated_at=now() WHERE id=$1`,
		o.ID, o.Status, o.Description)
	return err
}
