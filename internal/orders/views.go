package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderView is the read projection handed to the HTTP layer.
type OrderView struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	OrderDate       time.Time       `json:"order_date"`
	Status          Status          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Items           []OrderItemView `json:"items"`
}

type OrderItemView struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Qty         int             `json:"qty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func (o *Order) View() OrderView {
	v := OrderView{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		OrderDate:       o.OrderDate,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		TotalAmount:     o.TotalAmount,
		Items:           make([]OrderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, OrderItemView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Qty:         it.Qty,
			Subtotal:    it.Subtotal(),
		})
	}
	return v
}

func viewsOf(os []Order) []OrderView {
	out := make([]OrderView, 0, len(os))
	for i := range os {
		out = append(out, os[i].View())
	}
	return out
}
