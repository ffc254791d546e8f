package validation

import "github.com/imrishuroy/multiregion-ecommerce/internal/orders"

// Item is a single order line as received on the wire.
type Item struct {
	ID       string        `json:"id" validate:"required"`
	Quantity int           `json:"quantity" validate:"min=1,max=10000"`
	Price    orders.Amount `json:"price"` // bounded by validateItem
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
	Items      []Item `json:"items" validate:"required,min=1,dive"`
}

// OrderItems converts the request lines to stored order items.
func (r CreateOrderRequest) OrderItems() []orders.Item {
	out := make([]orders.Item, len(r.Items))
	for i, it := range r.Items {
		out[i] = orders.Item{ID: it.ID, Quantity: it.Quantity, Price: it.Price}
	}
	return out
}
