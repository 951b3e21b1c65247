// Package memstore is an in-memory orders.Store used by tests and local dev.
// A store-wide mutex plus copy-on-write transactions make every WithTx scope
// serializable: the callback mutates cloned maps that are swapped in only on
// commit, so a failed callback leaves the store byte-for-byte unchanged.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
)

type Store struct {
	mu        sync.RWMutex
	products  map[string]*orders.Product
	customers map[string]*orders.Customer
	orders    map[string]*orders.Order
}

func New() *Store {
	return &Store{
		products:  make(map[string]*orders.Product),
		customers: make(map[string]*orders.Customer),
		orders:    make(map[string]*orders.Order),
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		products:  cloneProducts(s.products),
		customers: s.customers, // read-only inside a tx
		orders:    cloneOrders(s.orders),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.products = tx.products
	s.orders = tx.orders
	return nil
}

type memTx struct {
	products  map[string]*orders.Product
	customers map[string]*orders.Customer
	orders    map[string]*orders.Order
}

func (t *memTx) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	_, ok := t.customers[customerID]
	return ok, nil
}

func (t *memTx) ProductForUpdate(ctx context.Context, productID string) (*orders.Product, error) {
	p, ok := t.products[productID]
	if !ok {
		return nil, &orders.NotFoundError{Kind: "product", ID: productID}
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) SaveProduct(ctx context.Context, p *orders.Product) error {
	if _, ok := t.products[p.ID]; !ok {
		return &orders.NotFoundError{Kind: "product", ID: p.ID}
	}
	cp := *p
	t.products[p.ID] = &cp
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	if _, ok := t.orders[o.ID]; ok {
		return &orders.ConflictError{Reason: fmt.Sprintf("order %s already exists", o.ID)}
	}
	t.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *memTx) OrderForUpdate(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := t.orders[orderID]
	if !ok {
		return nil, &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	return cloneOrder(o), nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, orderID string, st orders.Status) error {
	o, ok := t.orders[orderID]
	if !ok {
		return &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	o.Status = st
	return nil
}

func (t *memTx) DeleteOrder(ctx context.Context, orderID string) error {
	if _, ok := t.orders[orderID]; !ok {
		return &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	delete(t.orders, orderID)
	return nil
}

// ---- reads ----

func (s *Store) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, &orders.NotFoundError{Kind: "order", ID: orderID}
	}
	return s.projectLocked(o), nil
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return s.filterOrders(func(*orders.Order) bool { return true }), nil
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]orders.Order, error) {
	return s.filterOrders(func(o *orders.Order) bool { return o.CustomerID == customerID }), nil
}

func (s *Store) ListOrdersByStatus(ctx context.Context, st orders.Status) ([]orders.Order, error) {
	return s.filterOrders(func(o *orders.Order) bool { return o.Status == st }), nil
}

func (s *Store) filterOrders(keep func(*orders.Order) bool) []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]orders.Order, 0)
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *s.projectLocked(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.Before(out[j].OrderDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// projectLocked clones o and resolves each item's product name at read time.
func (s *Store) projectLocked(o *orders.Order) *orders.Order {
	cp := cloneOrder(o)
	for i := range cp.Items {
		if p, ok := s.products[cp.Items[i].ProductID]; ok {
			cp.Items[i].ProductName = p.Name
		}
	}
	return cp
}

// ---- products ----

func (s *Store) GetProduct(ctx context.Context, productID string) (*orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, &orders.NotFoundError{Kind: "product", ID: productID}
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) InsertProduct(ctx context.Context, p *orders.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return &orders.ConflictError{Reason: fmt.Sprintf("product %s already exists", p.ID)}
	}
	for _, other := range s.products {
		if other.SKU == p.SKU {
			return &orders.ConflictError{Reason: fmt.Sprintf("duplicate SKU %s", p.SKU)}
		}
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *orders.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[p.ID]
	if !ok {
		return &orders.NotFoundError{Kind: "product", ID: p.ID}
	}
	for _, other := range s.products {
		if other.ID != p.ID && other.SKU == p.SKU {
			return &orders.ConflictError{Reason: fmt.Sprintf("duplicate SKU %s", p.SKU)}
		}
	}
	cp := *p
	// stock moves only through order create/delete; a catalog update carrying
	// a stale stock value must not overwrite reserved units
	cp.Stock = cur.Stock
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return &orders.NotFoundError{Kind: "product", ID: productID}
	}
	for _, o := range s.orders {
		for _, it := range o.Items {
			if it.ProductID == productID {
				return &orders.ConflictError{Reason: fmt.Sprintf("product %s is referenced by order %s", productID, o.ID)}
			}
		}
	}
	delete(s.products, productID)
	return nil
}

// ---- customers ----

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*orders.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, &orders.NotFoundError{Kind: "customer", ID: customerID}
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]orders.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]orders.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) InsertCustomer(ctx context.Context, c *orders.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[c.ID]; ok {
		return &orders.ConflictError{Reason: fmt.Sprintf("customer %s already exists", c.ID)}
	}
	for _, other := range s.customers {
		if other.Email == c.Email {
			return &orders.ConflictError{Reason: fmt.Sprintf("duplicate email %s", c.Email)}
		}
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *orders.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[c.ID]; !ok {
		return &orders.NotFoundError{Kind: "customer", ID: c.ID}
	}
	for _, other := range s.customers {
		if other.ID != c.ID && other.Email == c.Email {
			return &orders.ConflictError{Reason: fmt.Sprintf("duplicate email %s", c.Email)}
		}
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customerID]; !ok {
		return &orders.NotFoundError{Kind: "customer", ID: customerID}
	}
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			return &orders.ConflictError{Reason: fmt.Sprintf("customer %s has order %s", customerID, o.ID)}
		}
	}
	delete(s.customers, customerID)
	return nil
}

// ---- clone helpers ----

func cloneProducts(in map[string]*orders.Product) map[string]*orders.Product {
	out := make(map[string]*orders.Product, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}

func cloneOrders(in map[string]*orders.Order) map[string]*orders.Order {
	out := make(map[string]*orders.Order, len(in))
	for k, v := range in {
		out[k] = cloneOrder(v)
	}
	return out
}

func cloneOrder(o *orders.Order) *orders.Order {
	cp := *o
	cp.Items = make([]orders.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}
