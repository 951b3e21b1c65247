package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CreateOrderInput struct {
	CustomerID      string      `json:"customer_id"`
	ShippingAddress string      `json:"shipping_address"`
	BillingAddress  string      `json:"billing_address"`
	Items           []ItemInput `json:"items"`
}

// Service implements the order workflow on top of a Store. All mutations run
// inside a single Store.WithTx scope: stock reservation and the aggregate
// insert (or restock and the aggregate delete) commit together or not at all.
type Service struct {
	Store Store
}

// CreateOrder validates the customer and every line item, reserves stock in
// input order, freezes each item's unit price, and persists the aggregate.
// A failure on any line leaves no order and no stock change behind.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderView, error) {
	if len(in.Items) == 0 {
		return nil, &InvalidArgumentError{Reason: "order needs at least one item"}
	}
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return nil, &InvalidArgumentError{Reason: fmt.Sprintf("invalid qty for product %s", it.ProductID)}
		}
	}

	order := &Order{
		ID:              uuid.NewString(),
		CustomerID:      in.CustomerID,
		OrderDate:       time.Now().UTC(),
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Status:          StatusPending,
	}

	err := s.Store.WithTx(ctx, func(tx Tx) error {
		ok, err := tx.CustomerExists(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{Kind: "customer", ID: in.CustomerID}
		}

		total := decimal.Zero
		for _, it := range in.Items {
			p, err := tx.ProductForUpdate(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < it.Qty {
				return &ConflictError{Reason: fmt.Sprintf("insufficient stock for SKU %s", p.SKU)}
			}
			p.Stock -= it.Qty
			if err := tx.SaveProduct(ctx, p); err != nil {
				return err
			}
			order.Items = append(order.Items, OrderItem{
				ID:          uuid.NewString(),
				OrderID:     order.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Qty:         it.Qty,
				UnitPrice:   p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Qty))))
		}
		order.TotalAmount = total

		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	v := order.View()
	return &v, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	v := o.View()
	return &v, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]OrderView, error) {
	os, err := s.Store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return viewsOf(os), nil
}

func (s *Service) ListOrdersByCustomer(ctx context.Context, customerID string) ([]OrderView, error) {
	os, err := s.Store.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return viewsOf(os), nil
}

// ListOrdersByStatus filters on an exact, case-sensitive status match; an
// unrecognized value is rejected at the boundary instead of returning an
// empty list.
func (s *Service) ListOrdersByStatus(ctx context.Context, raw string) ([]OrderView, error) {
	st, ok := ParseStatus(raw)
	if !ok {
		return nil, &InvalidArgumentError{Reason: fmt.Sprintf("unknown status %q", raw)}
	}
	os, err := s.Store.ListOrdersByStatus(ctx, st)
	if err != nil {
		return nil, err
	}
	return viewsOf(os), nil
}

// DeleteOrder removes the aggregate and returns each item's quantity to
// product stock in the same transaction, reporting what was restocked.
// Deletion is allowed in any status, terminal ones included, matching the
// upstream behavior.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) ([]ItemQty, error) {
	var restocked []ItemQty
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		restocked = restocked[:0]
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		for _, it := range o.Items {
			p, err := tx.ProductForUpdate(ctx, it.ProductID)
			if err != nil {
				return err
			}
			p.Stock += it.Qty
			if err := tx.SaveProduct(ctx, p); err != nil {
				return err
			}
			restocked = append(restocked, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return restocked, nil
}

// UpdateOrderStatus applies one transition of the state machine and reports
// the status the order had before. Terminal orders never move again; a status
// change touches no other field, so cancelling does not restock (DeleteOrder
// does).
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, raw string) (Status, error) {
	next, ok := ParseStatus(raw)
	if !ok {
		return "", &InvalidArgumentError{Reason: fmt.Sprintf("unknown status %q", raw)}
	}

	var prev Status
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		prev = o.Status
		if o.Status.Terminal() {
			return &ConflictError{Reason: fmt.Sprintf("order %s is %s", orderID, o.Status)}
		}
		if !CanTransition(o.Status, next) {
			return &ConflictError{Reason: fmt.Sprintf("cannot move order %s from %s to %s", orderID, o.Status, next)}
		}
		return tx.SetOrderStatus(ctx, orderID, next)
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}
