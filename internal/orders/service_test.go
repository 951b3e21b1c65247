package orders_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/store/memstore"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seed: customer c1, product p1 (SKU-1, 9.99, stock 5), p2 (SKU-2, 4.50, stock 10).
func seed(t *testing.T) (*orders.Service, *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.InsertCustomer(ctx, &orders.Customer{
		ID: "c1", Name: "Ada", Email: "ada@example.com", Address: "1 Main St",
	}))
	require.NoError(t, st.InsertProduct(ctx, &orders.Product{
		ID: "p1", SKU: "SKU-1", Name: "Widget", Price: dec("9.99"), Stock: 5, Active: true,
	}))
	require.NoError(t, st.InsertProduct(ctx, &orders.Product{
		ID: "p2", SKU: "SKU-2", Name: "Gadget", Price: dec("4.50"), Stock: 10, Active: true,
	}))
	return &orders.Service{Store: st}, st
}

func createInput(customerID string, items ...orders.ItemInput) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		CustomerID:      customerID,
		ShippingAddress: "1 Main St",
		BillingAddress:  "2 Side St",
		Items:           items,
	}
}

func stockOf(t *testing.T, st *memstore.Store, productID string) int {
	t.Helper()
	p, err := st.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)

	view, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 2}))
	require.NoError(t, err)
	assert.Equal(t, "c1", view.CustomerID)
	assert.Equal(t, orders.StatusPending, view.Status)
	assert.Equal(t, "19.98", view.TotalAmount.String())
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Widget", view.Items[0].ProductName)
	assert.Equal(t, "9.99", view.Items[0].UnitPrice.String())
	assert.Equal(t, "19.98", view.Items[0].Subtotal.String())
	assert.Equal(t, 3, stockOf(t, st, "p1"))

	// total always equals the sum of item subtotals, on read too
	got, err := svc.GetOrder(ctx, view.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, it := range got.Items {
		sum = sum.Add(it.Subtotal)
	}
	assert.True(t, got.TotalAmount.Equal(sum))

	// second order asking for more than remains fails and changes nothing
	_, err = svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 10}))
	require.Error(t, err)
	assert.True(t, orders.IsConflict(err))
	assert.Contains(t, err.Error(), "SKU-1")
	assert.Equal(t, 3, stockOf(t, st, "p1"))
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	svc, st := seed(t)

	_, err := svc.CreateOrder(context.Background(), createInput("ghost", orders.ItemInput{ProductID: "p1", Qty: 1}))
	require.Error(t, err)
	assert.True(t, orders.IsNotFound(err))
	assert.Equal(t, 5, stockOf(t, st, "p1"))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc, _ := seed(t)

	_, err := svc.CreateOrder(context.Background(), createInput("c1", orders.ItemInput{ProductID: "ghost", Qty: 1}))
	require.Error(t, err)
	assert.True(t, orders.IsNotFound(err))
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := seed(t)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, createInput("c1"))
	assert.True(t, orders.IsInvalidArgument(err))

	_, err = svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 0}))
	assert.True(t, orders.IsInvalidArgument(err))

	_, err = svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: -3}))
	assert.True(t, orders.IsInvalidArgument(err))
}

func TestCreateOrderRollsBackEarlierLines(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)

	// first line fits, second does not: nothing may stick
	_, err := svc.CreateOrder(ctx, createInput("c1",
		orders.ItemInput{ProductID: "p1", Qty: 2},
		orders.ItemInput{ProductID: "p2", Qty: 11},
	))
	require.Error(t, err)
	assert.True(t, orders.IsConflict(err))
	assert.Contains(t, err.Error(), "SKU-2")

	assert.Equal(t, 5, stockOf(t, st, "p1"))
	assert.Equal(t, 10, stockOf(t, st, "p2"))

	views, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestUnitPriceFrozenNameResolved(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)

	view, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	// reprice and rename the product after the order exists
	p, err := st.GetProduct(ctx, "p1")
	require.NoError(t, err)
	p.Price = dec("20.00")
	p.Name = "Widget Pro"
	require.NoError(t, st.UpdateProduct(ctx, p))

	got, err := svc.GetOrder(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "9.99", got.Items[0].UnitPrice.String(), "unit price is captured at order time")
	assert.Equal(t, "9.99", got.TotalAmount.String())
	assert.Equal(t, "Widget Pro", got.Items[0].ProductName, "product name is resolved at read time")
}

func TestStaleCatalogUpdateCannotTouchStock(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)

	// a catalog edit drafted before the order still carries stock 5
	stale, err := st.GetProduct(ctx, "p1")
	require.NoError(t, err)

	view, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 2}))
	require.NoError(t, err)
	require.Equal(t, 3, stockOf(t, st, "p1"))

	stale.Name = "Widget Deluxe"
	require.NoError(t, st.UpdateProduct(ctx, stale))
	assert.Equal(t, 3, stockOf(t, st, "p1"), "catalog update must not overwrite reserved stock")

	// the delete restock lands on the live count, not the stale one
	_, err = svc.DeleteOrder(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stockOf(t, st, "p1"))
}

func TestDeleteOrderRestocks(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)

	view, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p2", Qty: 3}))
	require.NoError(t, err)
	require.Equal(t, 7, stockOf(t, st, "p2"))

	restocked, err := svc.DeleteOrder(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []orders.ItemQty{{ProductID: "p2", Qty: 3}}, restocked)
	assert.Equal(t, 10, stockOf(t, st, "p2"))

	_, err = svc.GetOrder(ctx, view.ID)
	assert.True(t, orders.IsNotFound(err))

	_, err = svc.DeleteOrder(ctx, view.ID)
	assert.True(t, orders.IsNotFound(err))
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := seed(t)

	view, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	prev, err := svc.UpdateOrderStatus(ctx, view.ID, "Processing")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, prev)

	prev, err = svc.UpdateOrderStatus(ctx, view.ID, "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, prev)

	// terminal: no resurrection
	_, err = svc.UpdateOrderStatus(ctx, view.ID, "Processing")
	assert.True(t, orders.IsConflict(err))

	got, err := svc.GetOrder(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
}

func TestUpdateOrderStatusRejectsSkipsAndUnknowns(t *testing.T) {
	ctx := context.Background()
	svc, _ := seed(t)

	view, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, view.ID, "Shipped")
	assert.True(t, orders.IsInvalidArgument(err))

	// Pending -> Completed skips Processing and is not in the table
	_, err = svc.UpdateOrderStatus(ctx, view.ID, "Completed")
	assert.True(t, orders.IsConflict(err))

	_, err = svc.UpdateOrderStatus(ctx, "ghost", "Processing")
	assert.True(t, orders.IsNotFound(err))
}

func TestGetOrderIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := seed(t)

	view, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 2}))
	require.NoError(t, err)

	a, err := svc.GetOrder(ctx, view.ID)
	require.NoError(t, err)
	b, err := svc.GetOrder(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)
	require.NoError(t, st.InsertCustomer(ctx, &orders.Customer{
		ID: "c2", Name: "Bob", Email: "bob@example.com", Address: "3 Back St",
	}))

	o1, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p2", Qty: 1}))
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, createInput("c2", orders.ItemInput{ProductID: "p2", Qty: 2}))
	require.NoError(t, err)

	all, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byCustomer, err := svc.ListOrdersByCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, byCustomer, 2)

	_, err = svc.UpdateOrderStatus(ctx, o1.ID, "Processing")
	require.NoError(t, err)

	processing, err := svc.ListOrdersByStatus(ctx, "Processing")
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, o1.ID, processing[0].ID)

	pending, err := svc.ListOrdersByStatus(ctx, "Pending")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// status filter is case-sensitive and closed
	_, err = svc.ListOrdersByStatus(ctx, "processing")
	assert.True(t, orders.IsInvalidArgument(err))
}

func TestConcurrentCreatesNeverOversell(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)
	require.NoError(t, st.InsertProduct(ctx, &orders.Product{
		ID: "p3", SKU: "SKU-3", Name: "Doohickey", Price: dec("1.25"), Stock: 25, Active: true,
	}))

	const attempts = 20
	results := make(chan error, attempts)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p3", Qty: 2}))
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case orders.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// 25 units / 2 per order: exactly 12 orders fit, the rest conflict
	assert.Equal(t, 12, succeeded)
	assert.Equal(t, attempts-12, conflicted)
	assert.Equal(t, 1, stockOf(t, st, "p3"))
}

func TestConcurrentCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, st := seed(t)

	// churn: create+delete pairs racing plain creates; stock must end balanced
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			v, err := svc.CreateOrder(ctx, createInput("c1", orders.ItemInput{ProductID: "p2", Qty: 1}))
			if err != nil {
				if orders.IsConflict(err) {
					return nil
				}
				return err
			}
			_, err = svc.DeleteOrder(ctx, v.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 10, stockOf(t, st, "p2"))
	views, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)
}
