package service

import (
	"context"
	"testing"

	"erp/internal/apperror"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderReservesStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "10.00", 5)

	res, err := env.orderService().CreateOrder(ctx, "", CreateOrderRequest{
		CustomerID: customer.ID.String(),
		Items:      []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, "30.00", res.Subtotal.StringFixed(2))
	assert.Equal(t, "3.60", res.Tax.StringFixed(2))
	assert.Equal(t, "33.60", res.Total.StringFixed(2))
	assert.Equal(t, customer.Name, res.CustomerName)
	require.Len(t, res.Items, 1)
	assert.Equal(t, p.SKU, res.Items[0].ProductSKU)
	assert.Equal(t, 2, env.stockOf(t, p))

	movements, err := env.movements.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementDecrease, movements[0].Direction)
	assert.Equal(t, 3, movements[0].Quantity)
	assert.Equal(t, 2, movements[0].StockAfter)
	require.NotNil(t, movements[0].OrderID)
	assert.Equal(t, res.ID, movements[0].OrderID.String())

	events := env.events.Stock()
	require.Len(t, events, 1)
	assert.Equal(t, -3, events[0].Delta)
	assert.Equal(t, 2, events[0].Stock)
	env.events.AssertCalled(t, "Publish", EventStockChanged, mock.AnythingOfType("service.StockChangedEvent"))
}

func TestCreateOrderInsufficientStockTouchesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "10.00", 5)
	svc := env.orderService()

	req := CreateOrderRequest{
		CustomerID: customer.ID.String(),
		Items:      []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 6}},
	}

	// the same rejection twice, nothing changes in between
	for i := 0; i < 2; i++ {
		_, err := svc.CreateOrder(ctx, "", req)
		require.Error(t, err)
		assert.Equal(t, apperror.KindStockInsufficient, apperror.KindOf(err))

		appErr, ok := apperror.As(err)
		require.True(t, ok)
		shortage, ok := appErr.Details.(apperror.StockShortage)
		require.True(t, ok)
		assert.Equal(t, 5, shortage.Available)
		assert.Equal(t, 6, shortage.Required)
		assert.Equal(t, p.ID.String(), shortage.ProductID)

		assert.Equal(t, 5, env.stockOf(t, p))
	}

	n, err := env.orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	movements, err := env.movements.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
	env.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateOrderRejectsWholeOrderWhenOneLineIsShort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	plenty := env.seedProduct(t, "P-1", "1.00", 100)
	scarce := env.seedProduct(t, "P-2", "1.00", 1)

	_, err := env.orderService().CreateOrder(ctx, "", CreateOrderRequest{
		CustomerID: customer.ID.String(),
		Items: []OrderItemRequest{
			{ProductID: plenty.ID.String(), Quantity: 10},
			{ProductID: scarce.ID.String(), Quantity: 2},
		},
	})
	assert.True(t, apperror.Is(err, apperror.KindStockInsufficient))
	assert.Equal(t, 100, env.stockOf(t, plenty))
	assert.Equal(t, 1, env.stockOf(t, scarce))
}

func TestCreateOrderMergesRepeatedProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "2.50", 10)

	res, err := env.orderService().CreateOrder(ctx, "", CreateOrderRequest{
		CustomerID: customer.ID.String(),
		Items: []OrderItemRequest{
			{ProductID: p.ID.String(), Quantity: 2},
			{ProductID: p.ID.String(), Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 5, res.Items[0].Quantity)
	assert.Equal(t, "12.50", res.Subtotal.StringFixed(2))
	assert.Equal(t, 5, env.stockOf(t, p))
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "1.00", 10)
	svc := env.orderService()

	tests := []struct {
		name string
		req  CreateOrderRequest
		kind apperror.Kind
	}{
		{"no items", CreateOrderRequest{CustomerID: customer.ID.String()}, apperror.KindValidation},
		{"zero quantity", CreateOrderRequest{CustomerID: customer.ID.String(),
			Items: []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 0}}}, apperror.KindValidation},
		{"above max quantity", CreateOrderRequest{CustomerID: customer.ID.String(),
			Items: []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 1001}}}, apperror.KindValidation},
		{"bad product id", CreateOrderRequest{CustomerID: customer.ID.String(),
			Items: []OrderItemRequest{{ProductID: "nope", Quantity: 1}}}, apperror.KindValidation},
		{"unknown customer", CreateOrderRequest{CustomerID: uuid.NewString(),
			Items: []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}}}, apperror.KindNotFound},
		{"unknown product", CreateOrderRequest{CustomerID: customer.ID.String(),
			Items: []OrderItemRequest{{ProductID: uuid.NewString(), Quantity: 1}}}, apperror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, "", tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
	assert.Equal(t, 10, env.stockOf(t, p))
}

// racingProducts lets another writer bump every product right after the
// service has read them.
type racingProducts struct {
	repository.ProductRepository
}

func (r racingProducts) FindByIDs(ctx context.Context, ids []uuid.UUID, vis repository.Visibility) ([]model.Product, error) {
	products, err := r.ProductRepository.FindByIDs(ctx, ids, vis)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if err := r.ProductRepository.AdjustStock(ctx, p.ID, p.Version, -1); err != nil {
			return nil, err
		}
	}
	return products, nil
}

func TestCreateOrderLosesRaceWithConcurrentWriter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "10.00", 5)

	env.products = racingProducts{env.products}
	_, err := env.orderService().CreateOrder(ctx, "", CreateOrderRequest{
		CustomerID: customer.ID.String(),
		Items:      []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 3}},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	// only the competing writer's change is visible
	assert.Equal(t, 4, env.stockOf(t, p))
	n, err := env.orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	env.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestListOrdersByCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "1.00", 10)
	svc := env.orderService()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(ctx, "", CreateOrderRequest{
			CustomerID: customer.ID.String(),
			Items:      []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
		})
		require.NoError(t, err)
	}

	list, total, err := svc.ListOrders(ctx, customer.ID.String(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	_, total, err = svc.ListOrders(ctx, uuid.NewString(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
