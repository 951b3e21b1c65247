// Package pgstore implements orders.Store on Postgres via pgx. Stock rows are
// locked with SELECT ... FOR UPDATE inside the order transaction, so two
// orders racing for the same product serialize at the database.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
)

type Store struct{ DB *pgxpool.Pool }

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id=$1)`, customerID).Scan(&ok)
	return ok, err
}

func (t *pgTx) ProductForUpdate(ctx context.Context, productID string) (*orders.Product, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, sku, name, COALESCE(description,''), price::text, stock, active, created_at, updated_at
		FROM products WHERE id=$1 FOR UPDATE`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &orders.NotFoundError{Kind: "product", ID: productID}
	}
	return p, err
}

func (t *pgTx) SaveProduct(ctx context.Context, p *orders.Product) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET sku=$2, name=$3, description=$4, price=$5, stock=$6, active=$7, updated_at=now()
		WHERE id=$1`,
		p.ID, p.SKU, p.Name, p.Description, p.Price.String(), p.Stock, p.Active,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &orders.NotFoundError{Kind: "product", ID: p.ID}
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, customer_id, order_date, shipping_address, billing_address, status, total_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.ID, o.CustomerID, o.OrderDate, o.ShippingAddress, o.BillingAddress, string(o.Status), o.TotalAmount.String(),
	)
	if err != nil {
		return err
	}
	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, line_no, qty, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			it.ID, o.ID, it.ProductID, i, it.Qty, it.UnitPrice.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) OrderForUpdate(ctx context.Context, orderID string) (*orders.Order, error) {
	var o orders.Order
	var status, total string
	err := t.tx.QueryRow(ctx, `
		SELECT id, customer_id, order_date, shipping_address, billing_address, status, total_amount::text
		FROM orders WHERE id=$1 FOR UPDATE`, orderID,
	).Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.ShippingAddress, &o.BillingAddress, &status, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT id, product_id, qty, unit_price::text
		FROM order_items WHERE order_id=$1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.OrderItem
		var price string
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Qty, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		it.OrderID = orderID
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID string, st orders.Status) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, string(st))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	return nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	return nil
}

// ---- order reads ----

func (s *Store) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	out, err := s.listOrders(ctx, ` WHERE id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	return &out[0], nil
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return s.listOrders(ctx, ``)
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]orders.Order, error) {
	return s.listOrders(ctx, ` WHERE customer_id=$1`, customerID)
}

func (s *Store) ListOrdersByStatus(ctx context.Context, st orders.Status) ([]orders.Order, error) {
	return s.listOrders(ctx, ` WHERE status=$1`, string(st))
}

// listOrders fetches matching orders plus their items in two queries; item
// product names are joined in at read time.
func (s *Store) listOrders(ctx context.Context, cond string, args ...any) ([]orders.Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, customer_id, order_date, shipping_address, billing_address, status, total_amount::text
		FROM orders`+cond+` ORDER BY order_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	idx := map[string]int{}
	for rows.Next() {
		var o orders.Order
		var status, total string
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.ShippingAddress, &o.BillingAddress, &status, &total); err != nil {
			return nil, err
		}
		o.Status = orders.Status(status)
		if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		idx[o.ID] = len(out)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	itemRows, err := s.DB.Query(ctx, `
		SELECT i.order_id, i.id, i.product_id, p.name, i.qty, i.unit_price::text
		FROM order_items i JOIN products p ON p.id = i.product_id
		WHERE i.order_id IN (SELECT id FROM orders`+cond+`)
		ORDER BY i.order_id, i.line_no`, args...)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it orders.OrderItem
		var price string
		if err := itemRows.Scan(&it.OrderID, &it.ID, &it.ProductID, &it.ProductName, &it.Qty, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		i, ok := idx[it.OrderID]
		if !ok {
			continue
		}
		out[i].Items = append(out[i].Items, it)
	}
	return out, itemRows.Err()
}

// ---- products ----

func (s *Store) GetProduct(ctx context.Context, productID string) (*orders.Product, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, sku, name, COALESCE(description,''), price::text, stock, active, created_at, updated_at
		FROM products WHERE id=$1`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &orders.NotFoundError{Kind: "product", ID: productID}
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, sku, name, COALESCE(description,''), price::text, stock, active, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) InsertProduct(ctx context.Context, p *orders.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products(id, sku, name, description, price, stock, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.SKU, p.Name, p.Description, p.Price.String(), p.Stock, p.Active,
	)
	return translateUnique(err, fmt.Sprintf("duplicate SKU %s", p.SKU))
}

func (s *Store) UpdateProduct(ctx context.Context, p *orders.Product) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET sku=$2, name=$3, description=$4, price=$5, active=$6, updated_at=now()
		WHERE id=$1`,
		p.ID, p.SKU, p.Name, p.Description, p.Price.String(), p.Active,
	)
	if err != nil {
		return translateUnique(err, fmt.Sprintf("duplicate SKU %s", p.SKU))
	}
	if ct.RowsAffected() != 1 {
		return &orders.NotFoundError{Kind: "product", ID: p.ID}
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	var referenced bool
	err := s.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id=$1)`, productID,
	).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return &orders.ConflictError{Reason: fmt.Sprintf("product %s is referenced by existing orders", productID)}
	}
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &orders.NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

// ---- customers ----

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*orders.Customer, error) {
	var c orders.Customer
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, email, address, created_at FROM customers WHERE id=$1`, customerID,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &orders.NotFoundError{Kind: "customer", ID: customerID}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]orders.Customer, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, email, address, created_at FROM customers ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Customer
	for rows.Next() {
		var c orders.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertCustomer(ctx context.Context, c *orders.Customer) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO customers(id, name, email, address) VALUES ($1,$2,$3,$4)`,
		c.ID, c.Name, c.Email, c.Address,
	)
	return translateUnique(err, fmt.Sprintf("duplicate email %s", c.Email))
}

func (s *Store) UpdateCustomer(ctx context.Context, c *orders.Customer) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE customers SET name=$2, email=$3, address=$4 WHERE id=$1`,
		c.ID, c.Name, c.Email, c.Address,
	)
	if err != nil {
		return translateUnique(err, fmt.Sprintf("duplicate email %s", c.Email))
	}
	if ct.RowsAffected() != 1 {
		return &orders.NotFoundError{Kind: "customer", ID: c.ID}
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, customerID string) error {
	var referenced bool
	err := s.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE customer_id=$1)`, customerID,
	).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return &orders.ConflictError{Reason: fmt.Sprintf("customer %s has existing orders", customerID)}
	}
	ct, err := s.DB.Exec(ctx, `DELETE FROM customers WHERE id=$1`, customerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &orders.NotFoundError{Kind: "customer", ID: customerID}
	}
	return nil
}

// ---- helpers ----

func scanProduct(row pgx.Row) (*orders.Product, error) {
	var p orders.Product
	var price string
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &p, nil
}

func translateUnique(err error, reason string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &orders.ConflictError{Reason: reason}
	}
	return err
}
