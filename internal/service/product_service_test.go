package service

import (
	"context"
	"testing"

	"erp/internal/apperror"
	"erp/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateProductRecordsInitialStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.productService()

	res, err := svc.CreateProduct(ctx, "", CreateProductRequest{
		SKU: " W-1 ", Name: "Widget", Price: decimal.RequireFromString("9.99"), Stock: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "W-1", res.SKU)
	assert.Equal(t, model.DefaultLowStockThreshold, res.LowStockThreshold)
	assert.False(t, res.LowStock)
	assert.Equal(t, int64(1), res.Version)

	movements, total, err := svc.ListMovements(ctx, MovementListRequest{ProductID: res.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.MovementIncrease, movements[0].Direction)
	assert.Equal(t, 12, movements[0].StockAfter)
	assert.Equal(t, "Initial stock", movements[0].Reason)

	_, err = svc.CreateProduct(ctx, "", CreateProductRequest{SKU: "W-1", Name: "Clone", Price: decimal.NewFromInt(1)})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.productService()
	negative := -1

	tests := []struct {
		name string
		req  CreateProductRequest
	}{
		{"blank sku", CreateProductRequest{SKU: " ", Name: "A", Price: decimal.NewFromInt(1)}},
		{"zero price", CreateProductRequest{SKU: "A", Name: "A", Price: decimal.Zero}},
		{"negative stock", CreateProductRequest{SKU: "A", Name: "A", Price: decimal.NewFromInt(1), Stock: -1}},
		{"negative threshold", CreateProductRequest{SKU: "A", Name: "A", Price: decimal.NewFromInt(1), LowStockThreshold: &negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), "", tt.req)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}

func TestUpdateProductRequiresCurrentVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.productService()
	p := env.seedProduct(t, "P-1", "1.00", 5)

	res, err := svc.UpdateProduct(ctx, "", p.ID.String(), UpdateProductRequest{
		SKU: "P-1", Name: "Renamed", Price: decimal.NewFromInt(2), LowStockThreshold: 1, Version: p.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", res.Name)
	assert.Equal(t, p.Version+1, res.Version)

	_, err = svc.UpdateProduct(ctx, "", p.ID.String(), UpdateProductRequest{
		SKU: "P-1", Name: "Stale", Price: decimal.NewFromInt(3), Version: p.Version,
	})
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	got, err := svc.GetProduct(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestAdjustStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.productService()
	p := env.seedProduct(t, "P-1", "1.00", 5)

	_, err := svc.AdjustStock(ctx, "", AdjustStockRequest{
		ProductID: p.ID.String(), Direction: model.MovementDecrease, Quantity: 6, Reason: "damaged",
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindStockInsufficient, apperror.KindOf(err))
	assert.Equal(t, 5, env.stockOf(t, p))
	env.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	m, err := svc.AdjustStock(ctx, "", AdjustStockRequest{
		ProductID: p.ID.String(), Direction: model.MovementDecrease, Quantity: 5, Reason: "damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, m.StockAfter)
	assert.Equal(t, p.Name, m.ProductName)
	assert.Equal(t, 0, env.stockOf(t, p))

	m, err = svc.AdjustStock(ctx, "", AdjustStockRequest{
		ProductID: p.ID.String(), Direction: model.MovementIncrease, Quantity: 7, Reason: "stock take",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, m.StockAfter)

	events := env.events.Stock()
	require.Len(t, events, 2)
	assert.Equal(t, -5, events[0].Delta)
	assert.Equal(t, 7, events[1].Delta)

	_, err = svc.AdjustStock(ctx, "", AdjustStockRequest{ProductID: p.ID.String(), Direction: "SIDEWAYS", Quantity: 1, Reason: "x"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	_, err = svc.AdjustStock(ctx, "", AdjustStockRequest{ProductID: p.ID.String(), Direction: model.MovementIncrease, Quantity: 1})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestListLowStockSuggestsReorder(t *testing.T) {
	env := newTestEnv(t)
	svc := env.productService()
	low := env.seedProduct(t, "LOW", "1.00", 1)
	env.seedProduct(t, "OK", "1.00", 50)

	res, err := svc.ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, low.SKU, res[0].SKU)
	assert.True(t, res[0].LowStock)
	assert.Equal(t, 3, res[0].SuggestedReorder)
}

func TestDeleteProductBlockedByOpenPurchaseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.productService()
	p := env.seedProduct(t, "P-1", "1.00", 0)
	supplier := env.seedSupplier(t, true)

	po, err := env.purchaseOrderService().CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items:      []PurchaseOrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	err = svc.DeleteProduct(ctx, "", p.ID.String())
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	_, err = env.purchaseOrderService().CancelPurchaseOrder(ctx, "", po.ID, CancelPurchaseOrderRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, "", p.ID.String()))

	_, err = svc.GetProduct(ctx, p.ID.String())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	list, total, err := svc.ListProducts(ctx, ProductListRequest{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.True(t, list[0].IsDeleted)

	restored, err := svc.RestoreProduct(ctx, "", p.ID.String())
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	_, err = svc.RestoreProduct(ctx, "", p.ID.String())
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
}
