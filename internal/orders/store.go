package orders

import "context"

// Tx is the set of verbs available inside one storage transaction. A function
// passed to Store.WithTx performs all reads and writes through it; the store
// commits when the function returns nil and rolls back otherwise, so a failed
// order operation leaves zero observable effect.
type Tx interface {
	CustomerExists(ctx context.Context, customerID string) (bool, error)

	// ProductForUpdate reads a product with a write lock held until commit.
	// Every stock mutation goes through this read followed by SaveProduct.
	ProductForUpdate(ctx context.Context, productID string) (*Product, error)
	SaveProduct(ctx context.Context, p *Product) error

	InsertOrder(ctx context.Context, o *Order) error

	// OrderForUpdate locks the order row so two status transitions (or a
	// transition racing a delete) on the same order serialize.
	OrderForUpdate(ctx context.Context, orderID string) (*Order, error)
	SetOrderStatus(ctx context.Context, orderID string, s Status) error
	DeleteOrder(ctx context.Context, orderID string) error
}

// Store is the persistence boundary for the order workflow plus the plain
// CRUD reads the HTTP layer needs. Implementations: pgstore (Postgres) and
// memstore (tests, local dev).
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error)
	ListOrdersByStatus(ctx context.Context, s Status) ([]Order, error)

	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	// DeleteProduct fails with Conflict while any order line references the
	// product.
	DeleteProduct(ctx context.Context, productID string) error

	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	InsertCustomer(ctx context.Context, c *Customer) error
	UpdateCustomer(ctx context.Context, c *Customer) error
	// DeleteCustomer fails with Conflict while any order references the
	// customer.
	DeleteCustomer(ctx context.Context, customerID string) error
}
