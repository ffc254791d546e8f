package orders

import (
	"time"
)

// StatusPending is the only status this service writes; later transitions belong to downstream
// consumers of OrderCreated.
const StatusPending = "PENDING"

// RetentionPeriod is how long an order lives before the table TTL removes it.
const RetentionPeriod = 90 * 24 * time.Hour

// TimestampLayout is fixed-width so timestamps sort lexicographically in the GSIs.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Item is a single order line.
type Item struct {
	ID       string `json:"id" dynamodbav:"id"`
	Quantity int    `json:"quantity" dynamodbav:"quantity"`
	Price    Amount `json:"price" dynamodbav:"price"`
}

// Subtotal is price x quantity.
func (i Item) Subtotal() Amount {
	return i.Price.MulInt(i.Quantity)
}

// Order represents the item stored in the orders DynamoDB table.
type Order struct {
	OrderID     string `json:"orderId" dynamodbav:"orderId"`     // PK
	Timestamp   string `json:"timestamp" dynamodbav:"timestamp"` // GSI sort key
	CustomerID  string `json:"customerId" dynamodbav:"customerId"`
	Items       []Item `json:"items" dynamodbav:"items"`
	TotalAmount Amount `json:"totalAmount" dynamodbav:"totalAmount"`
	Status      string `json:"status" dynamodbav:"status"`
	TTL         int64  `json:"ttl" dynamodbav:"ttl"` // epoch seconds
}

// New builds a PENDING order created at now. TotalAmount is derived from items here and
// nowhere else.
func New(orderID, customerID string, items []Item, now time.Time) Order {
	now = now.UTC()
	return Order{
		OrderID:     orderID,
		Timestamp:   now.Format(TimestampLayout),
		CustomerID:  customerID,
		Items:       items,
		TotalAmount: TotalOf(items),
		Status:      StatusPending,
		TTL:         now.Add(RetentionPeriod).Unix(),
	}
}

// TotalOf sums price x quantity exactly.
func TotalOf(items []Item) Amount {
	total := Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
