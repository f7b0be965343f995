package basket

import "context"

type Item struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int32  `json:"quantity"`
}

type CustomerBasket struct {
	BuyerID string `json:"buyer_id"`
	Items   []Item `json:"items"`
}

// Repository is a per-user key-value store. Get returns (nil, nil) for
// an unknown buyer.
type Repository interface {
	Get(ctx context.Context, buyerID string) (*CustomerBasket, error)
	Replace(ctx context.Context, b *CustomerBasket) error
	Delete(ctx context.Context, buyerID string) error
}
