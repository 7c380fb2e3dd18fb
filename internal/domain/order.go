package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a customer order
type Order struct {
	ID     uuid.UUID   `json:"id" db:"id"`
	UserID uuid.UUID   `json:"user_id" db:"user_id"`
	Status OrderStatus `json:"status" db:"status"`
	Items  []*OrderItem `json:"items,omitempty"`
	Timestamps
}

// Total sums the line subtotals.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// OrderItem is an order line. UnitPrice is the product price captured at
// order time and may differ from the current catalog price.
type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Timestamps
}

// Subtotal returns quantity times the captured unit price.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
