package domain

// Buyer is owned by a separate bounded context; the ordering core only
// reads it when an integration event needs buyer-facing data.
type Buyer struct {
	ID           BuyerID
	IdentityGUID string
	Name         string
}
