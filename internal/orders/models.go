package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Order owns its Items: they are created and deleted together.
type Order struct {
	ID              string
	CustomerID      string
	OrderDate       time.Time
	ShippingAddress string
	BillingAddress  string
	Status          Status // see status.go
	TotalAmount     decimal.Decimal
	Items           []OrderItem
}

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	// ProductName is resolved against the catalog at read time; it is never
	// stored with the item, so product renames show up in old orders.
	ProductName string
	Qty         int
	// UnitPrice is the product price at order-creation time. It must never be
	// recomputed from the product afterwards.
	UnitPrice decimal.Decimal
}

// Subtotal is UnitPrice * Qty.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty)))
}
