package repository

import (
	"context"
	"errors"
	"testing"

	"erp/internal/apperror"
	"erp/internal/database/dbtest"
	"erp/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, repo ProductRepository, sku string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{SKU: sku, Name: "Product " + sku, Price: decimal.NewFromInt(10), Stock: stock, LowStockThreshold: 3}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestAdjustStockCompareAndSwap(t *testing.T) {
	db := dbtest.New(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	p := seedProduct(t, repo, "SKU-1", 5)

	require.NoError(t, repo.AdjustStock(ctx, p.ID, p.Version, -3))

	got, err := repo.FindByID(ctx, p.ID, VisibleOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, p.Version+1, got.Version)

	// the stale version loses
	err = repo.AdjustStock(ctx, p.ID, p.Version, -1)
	assert.True(t, errors.Is(err, apperror.ErrVersionConflict))
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	got, err = repo.FindByID(ctx, p.ID, VisibleOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestAdjustStockNeverNegative(t *testing.T) {
	db := dbtest.New(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	p := seedProduct(t, repo, "SKU-1", 2)

	err := repo.AdjustStock(ctx, p.ID, p.Version, -3)
	assert.Error(t, err)

	got, err := repo.FindByID(ctx, p.ID, VisibleOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, p.Version, got.Version)
}

func TestProductUpdateChecksVersion(t *testing.T) {
	db := dbtest.New(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	p := seedProduct(t, repo, "SKU-1", 1)

	stale := *p
	p.Name = "Renamed"
	require.NoError(t, repo.Update(ctx, p))
	assert.Equal(t, int64(2), p.Version)

	stale.Name = "Lost update"
	assert.True(t, apperror.Is(repo.Update(ctx, &stale), apperror.KindConcurrency))

	got, err := repo.FindByID(ctx, p.ID, VisibleOnly)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestSoftDeleteVisibility(t *testing.T) {
	db := dbtest.New(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	keep := seedProduct(t, repo, "KEEP", 1)
	gone := seedProduct(t, repo, "GONE", 1)

	require.NoError(t, repo.SoftDelete(ctx, gone.ID, gone.Version))

	_, err := repo.FindByID(ctx, gone.ID, VisibleOnly)
	assert.Error(t, err)

	deleted, err := repo.FindByID(ctx, gone.ID, IncludeDeleted)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.NotNil(t, deleted.DeletedAt)

	found, err := repo.FindByIDs(ctx, []uuid.UUID{keep.ID, gone.ID}, VisibleOnly)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, keep.ID, found[0].ID)

	list, total, err := repo.List(ctx, ProductFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	_, total, err = repo.List(ctx, ProductFilter{Visibility: IncludeDeleted, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	require.NoError(t, repo.Restore(ctx, gone.ID))
	_, err = repo.FindByID(ctx, gone.ID, VisibleOnly)
	assert.NoError(t, err)
}

func TestListLowStock(t *testing.T) {
	db := dbtest.New(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	seedProduct(t, repo, "LOW", 2)
	seedProduct(t, repo, "EDGE", 3)
	seedProduct(t, repo, "OK", 50)

	list, total, err := repo.List(ctx, ProductFilter{LowStock: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "LOW", list[0].SKU)

	n, err := repo.CountLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRunInTxRollsBack(t *testing.T) {
	db := dbtest.New(t)
	repo := NewProductRepository(db)
	movements := NewMovementRepository(db)
	tm := NewTransactionManager(db)
	ctx := context.Background()
	p := seedProduct(t, repo, "SKU-1", 5)

	boom := errors.New("boom")
	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		require.True(t, InTx(txCtx))
		if err := repo.AdjustStock(txCtx, p.ID, p.Version, -2); err != nil {
			return err
		}
		if err := movements.Append(txCtx, &model.InventoryMovement{
			ProductID: p.ID, Direction: model.MovementDecrease, Quantity: 2, StockAfter: 3, Reason: "test",
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.FindByID(ctx, p.ID, VisibleOnly)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	list, err := movements.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
